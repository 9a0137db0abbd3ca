// Package testutil builds throwaway databases, backends and request scopes
// for tests.
package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/model"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

const ServiceKey = "test-service-key"

// PNG is the smallest header that sniffs as image/png.
var PNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:testdb_" + uuid.New().String() + "?mode=memory&cache=shared"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB from gorm: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// NewBackend returns a migrated backend with storage under a temp dir.
func NewBackend(t *testing.T, db *gorm.DB) *backend.Client {
	t.Helper()

	c, err := backend.New(db, backend.Options{
		ServiceKey:     ServiceKey,
		AccessTokenTTL: time.Hour,
		StorageDir:     t.TempDir(),
		PublicURL:      "/storage",
		MaxUploadBytes: 1 << 20,
	})
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	if err := c.Migrate(&model.Book{}); err != nil {
		t.Fatalf("failed to migrate backend: %v", err)
	}

	return c
}

// SignUp registers a random user and returns its session.
func SignUp(t *testing.T, c *backend.Client) *backend.Session {
	t.Helper()

	sess, err := c.Auth.SignUp(context.Background(), gofakeit.Email(), gofakeit.Password(true, true, true, false, false, 12))
	if err != nil {
		t.Fatalf("failed to sign up test user: %v", err)
	}
	return sess
}

// NewWebSession returns a detached web session.
func NewWebSession(t *testing.T) *websession.Session {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return websession.FromContext(c)
}

// Scope is what a request of a signed-in user looks like after the
// middlewares ran: principal set, tokens in the web session, no backend
// session restored yet.
func Scope(t *testing.T, sess *backend.Session) *bridge.Scope {
	t.Helper()

	web := NewWebSession(t)
	bridge.StoreTokens(web, sess)

	return &bridge.Scope{
		Web:       web,
		Principal: &principal.Principal{UserID: sess.User.ID, Email: sess.User.Email},
	}
}

// AnonymousScope is a request without a principal.
func AnonymousScope(t *testing.T) *bridge.Scope {
	t.Helper()
	return &bridge.Scope{Web: NewWebSession(t)}
}
