package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/config"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/db"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/logger"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

var connectAttempts int

var rootCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Personal book catalog web application",
	Long: `catalog serves the bookshelf web application and its JSON API.

Configuration is read from .env (or the file named by ENV_FILE) and the
environment. BACKEND_URL and BACKEND_KEY are required.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().IntVar(&connectAttempts, "connect-attempts", db.DefaultMaxAttempts, "Database connection attempts before giving up")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// app is what every subcommand needs after startup.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *gorm.DB
	backend  *backend.Client
	sessions *websession.Store
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logger.Init(cfg.LogLevel, cfg.LogFormat)

	if loc, err := time.LoadLocation(cfg.TZ); err == nil {
		time.Local = loc
	} else {
		log.Warn("unknown TZ, keeping system location", "tz", cfg.TZ, "error", err)
	}

	database, err := db.ConnectWithRetry(ctx, cfg.BackendURL, connectAttempts, db.DefaultDelayBetweenTry)
	if err != nil {
		return nil, err
	}

	client, err := backend.New(database, backend.Options{
		ServiceKey:      cfg.BackendKey,
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		StorageDir:      cfg.StorageDir,
		PublicURL:       cfg.StoragePublicPath,
		MaxUploadBytes:  cfg.MaxUploadBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("create backend: %w", err)
	}

	sessions := websession.NewStore(database, cfg.SessionTTL, websession.CookieOptions{
		Name:   websession.DefaultCookieName,
		Secure: cfg.CookieSecure,
	})

	return &app{
		cfg:      cfg,
		logger:   log,
		db:       database,
		backend:  client,
		sessions: sessions,
	}, nil
}

// migrate creates or updates every table and drops expired web sessions.
func (a *app) migrate(ctx context.Context) error {
	if err := a.backend.Migrate(&model.Book{}); err != nil {
		return fmt.Errorf("migrate backend: %w", err)
	}
	if err := a.sessions.Migrate(); err != nil {
		return fmt.Errorf("migrate web sessions: %w", err)
	}

	purged, err := a.sessions.Purge(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("database migrated", "expired_sessions_purged", purged)
	return nil
}

func (a *app) close() {
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
