// Package backend is the embedded backend service: user accounts, an
// owner-agnostic row store and a file store, all reached through a Session.
package backend

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound           = errors.New("backend: not found")
	ErrUnauthenticated    = errors.New("backend: not authenticated")
	ErrInvalidCredentials = errors.New("backend: invalid credentials")
	ErrEmailTaken         = errors.New("backend: email already registered")
	ErrWeakPassword       = errors.New("backend: password too weak")
	ErrRejectedUpload     = errors.New("backend: upload rejected")
	ErrForbidden          = errors.New("backend: forbidden")
)

const (
	DefaultAccessTokenTTL  = time.Hour
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
	DefaultMaxUploadBytes  = 5 << 20
	DefaultPublicURL       = "/storage"
	DefaultStorageDir      = "./data/storage"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is a signed-in backend session. It is a plain value: callers own it
// and pass it to every call that needs an identity.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	User         *User
}

// Active reports whether the session carries a user.
func (s *Session) Active() bool {
	return s != nil && s.User != nil && s.User.ID != ""
}

type Options struct {
	ServiceKey      string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	StorageDir     string
	PublicURL      string
	MaxUploadBytes int64

	// Now overrides the clock. Tests only.
	Now func() time.Time
}

type Client struct {
	Auth    *Auth
	Storage *Storage

	db *gorm.DB
}

func New(db *gorm.DB, opts Options) (*Client, error) {
	if db == nil {
		return nil, errors.New("backend: nil database")
	}
	if opts.ServiceKey == "" {
		return nil, errors.New("backend: service key is required")
	}
	if opts.AccessTokenTTL <= 0 {
		opts.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if opts.RefreshTokenTTL <= 0 {
		opts.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if opts.StorageDir == "" {
		opts.StorageDir = DefaultStorageDir
	}
	if opts.PublicURL == "" {
		opts.PublicURL = DefaultPublicURL
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	auth := &Auth{
		db:         db,
		tokens:     newTokenSigner(opts.ServiceKey, opts.AccessTokenTTL, opts.Now),
		refreshTTL: opts.RefreshTokenTTL,
		now:        opts.Now,
	}

	return &Client{
		Auth: auth,
		Storage: &Storage{
			auth:      auth,
			dir:       opts.StorageDir,
			publicURL: opts.PublicURL,
			maxBytes:  opts.MaxUploadBytes,
		},
		db: db,
	}, nil
}

// Migrate creates the account tables plus any row tables served by From.
func (c *Client) Migrate(tables ...any) error {
	all := append([]any{&authUser{}, &refreshToken{}}, tables...)
	return c.db.AutoMigrate(all...)
}
