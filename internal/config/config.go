package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingBackendURL = errors.New("BACKEND_URL is required")
	ErrMissingBackendKey = errors.New("BACKEND_KEY is required")
)

type Config struct {
	GinMode string
	Port    string
	TZ      string

	// Backend service
	BackendURL      string // database URL of the backend service
	BackendKey      string // service key, signs backend access tokens
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Web session and principal cookie
	SessionSecret string
	SessionTTL    time.Duration
	CookieSecure  bool

	// File storage
	StorageDir        string
	StoragePublicPath string
	MaxUploadBytes    int64

	RateLimitAuth int // requests per minute per client on login/register

	LogLevel  string
	LogFormat string
}

// Load reads the optional .env file (ENV_FILE overrides the path) and then the
// process environment. It fails when the backend URL or key is missing.
func Load() (*Config, error) {
	envFile := getenv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err == nil {
		slog.Debug("loaded env file", "path", envFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	ginMode := getenv("GIN_MODE", "debug")

	cfg := &Config{
		GinMode: ginMode,
		Port:    getenv("PORT", "8080"),
		TZ:      getenv("TZ", "UTC"),

		BackendURL:      os.Getenv("BACKEND_URL"),
		BackendKey:      os.Getenv("BACKEND_KEY"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),

		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getEnvDuration("SESSION_TTL", 8*time.Hour),
		CookieSecure:  getEnvBool("COOKIE_SECURE", ginMode == "release"),

		StorageDir:        getenv("STORAGE_DIR", "./data/storage"),
		StoragePublicPath: getenv("STORAGE_PUBLIC_PATH", "/storage"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 5<<20)),

		RateLimitAuth: getEnvInt("RATE_LIMIT_AUTH", 10),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "text"),
	}

	if cfg.BackendURL == "" {
		return nil, ErrMissingBackendURL
	}
	if cfg.BackendKey == "" {
		return nil, ErrMissingBackendKey
	}

	if cfg.SessionSecret == "" {
		cfg.SessionSecret = cfg.BackendKey
	}

	if cfg.RateLimitAuth < 1 || cfg.RateLimitAuth > 10000 {
		return nil, fmt.Errorf("RATE_LIMIT_AUTH must be between 1 and 10000, got %d", cfg.RateLimitAuth)
	}
	if cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", cfg.MaxUploadBytes)
	}

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
