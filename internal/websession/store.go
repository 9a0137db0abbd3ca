package websession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultCookieName = "bookshelf_session"
	DefaultTTL        = 8 * time.Hour

	contextKey = "websession"
)

type record struct {
	ID        string            `gorm:"primaryKey;size:64"`
	Values    map[string]string `gorm:"column:data;serializer:json;type:text"`
	ExpiresAt time.Time         `gorm:"not null;index"`
	UpdatedAt time.Time
}

func (record) TableName() string {
	return "web_sessions"
}

type CookieOptions struct {
	Name   string
	Path   string
	Secure bool
}

// Store persists sessions with a sliding idle timeout of ttl.
type Store struct {
	db     *gorm.DB
	ttl    time.Duration
	cookie CookieOptions
	now    func() time.Time
}

func NewStore(db *gorm.DB, ttl time.Duration, cookie CookieOptions) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if cookie.Path == "" {
		cookie.Path = "/"
	}
	return &Store{db: db, ttl: ttl, cookie: cookie, now: time.Now}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&record{})
}

// Load returns the live session for id, or a new empty one when id is empty,
// unknown or expired. Unknown ids are never adopted.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return newSession()
	}

	var rec record
	err := s.db.WithContext(ctx).
		Where("id = ? AND expires_at > ?", id, s.now().UTC()).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newSession()
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	values := rec.Values
	if values == nil {
		values = map[string]string{}
	}
	return &Session{id: rec.ID, values: values}, nil
}

// Save writes a changed session. An emptied session is deleted instead, and
// a renewed one drops its previous row.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if sess == nil || !sess.dirty {
		return nil
	}

	if sess.oldID != "" {
		if err := s.Destroy(ctx, sess.oldID); err != nil {
			return err
		}
		sess.oldID = ""
	}

	if len(sess.values) == 0 {
		if !sess.isNew {
			if err := s.Destroy(ctx, sess.id); err != nil {
				return err
			}
		}
		sess.dirty = false
		return nil
	}

	now := s.now().UTC()
	rec := record{
		ID:        sess.id,
		Values:    sess.values,
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at", "updated_at"}),
		}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	sess.isNew = false
	sess.dirty = false
	return nil
}

// Touch extends the expiry of a stored session without rewriting its values.
func (s *Store) Touch(ctx context.Context, sess *Session) error {
	if sess == nil || sess.isNew {
		return nil
	}
	now := s.now().UTC()
	return s.db.WithContext(ctx).
		Model(&record{}).
		Where("id = ?", sess.id).
		UpdateColumns(map[string]any{"expires_at": now.Add(s.ttl), "updated_at": now}).Error
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&record{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now().UTC()).Delete(&record{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) writeCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cookie.Name, id, int(s.ttl.Seconds()), s.cookie.Path, "", s.cookie.Secure, true)
}

// Middleware loads the session before the handler and saves it after. The
// cookie is refreshed up front for stored sessions, and on first change for
// new ones, so it is always sent before the handler writes the response.
func (s *Store) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(s.cookie.Name)

		sess, err := s.Load(c.Request.Context(), id)
		if err != nil {
			slog.Error("failed to load web session", "error", err)
			if sess, err = newSession(); err != nil {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
		}

		if !sess.isNew {
			s.writeCookie(c, sess.id)
		}

		written := ""
		sess.onChange = func(cur *Session) {
			if cur.id != written {
				written = cur.id
				s.writeCookie(c, cur.id)
			}
		}
		if !sess.isNew {
			written = sess.id
		}

		c.Set(contextKey, sess)
		c.Next()

		ctx := context.WithoutCancel(c.Request.Context())
		if sess.dirty {
			if err := s.Save(ctx, sess); err != nil {
				slog.Error("failed to save web session", "error", err)
			}
			return
		}
		if err := s.Touch(ctx, sess); err != nil {
			slog.Debug("failed to touch web session", "error", err)
		}
	}
}

// FromContext returns the request's session. Without the middleware it
// returns a detached session that is never persisted.
func FromContext(c *gin.Context) *Session {
	if v, ok := c.Get(contextKey); ok {
		if sess, ok := v.(*Session); ok {
			return sess
		}
	}
	sess, err := newSession()
	if err != nil {
		return &Session{values: map[string]string{}, isNew: true}
	}
	c.Set(contextKey, sess)
	return sess
}
