package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/logger"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

type fakeRestorer struct {
	calls        int
	gotAccess    string
	gotRefresh   string
	SetSessionFn func(access, refresh string) (*backend.Session, error)
}

func (f *fakeRestorer) SetSession(_ context.Context, access, refresh string) (*backend.Session, error) {
	f.calls++
	f.gotAccess, f.gotRefresh = access, refresh
	if f.SetSessionFn != nil {
		return f.SetSessionFn(access, refresh)
	}
	return &backend.Session{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		User:         &backend.User{ID: "u-1", Email: "a@x.com"},
	}, nil
}

func newWebSession(t *testing.T) *websession.Session {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return websession.FromContext(c)
}

func authenticatedScope(t *testing.T) *Scope {
	web := newWebSession(t)
	web.Set(AccessTokenKey, "old-access")
	web.Set(RefreshTokenKey, "old-refresh")
	return &Scope{
		Web:       web,
		Principal: &principal.Principal{UserID: "u-1", Email: "a@x.com"},
	}
}

func TestStoreTokens(t *testing.T) {
	web := newWebSession(t)

	StoreTokens(web, &backend.Session{AccessToken: "a", RefreshToken: "r"})
	assert.Equal(t, "a", web.Get(AccessTokenKey))
	assert.Equal(t, "r", web.Get(RefreshTokenKey))

	StoreTokens(web, &backend.Session{AccessToken: "a2"})
	assert.Equal(t, "a2", web.Get(AccessTokenKey))
	assert.Equal(t, "r", web.Get(RefreshTokenKey), "missing refresh token leaves the old one")

	StoreTokens(web, nil)
	StoreTokens(nil, &backend.Session{AccessToken: "x"})
	assert.Equal(t, "a2", web.Get(AccessTokenKey))
}

func TestClearTokens(t *testing.T) {
	web := newWebSession(t)
	web.Set(AccessTokenKey, "a")
	web.Set(RefreshTokenKey, "r")
	web.Set("other", "kept")

	ClearTokens(web)
	ClearTokens(nil)

	assert.Empty(t, web.Get(AccessTokenKey))
	assert.Empty(t, web.Get(RefreshTokenKey))
	assert.Equal(t, "kept", web.Get("other"))
}

func TestRestoreIfNeeded_RestoresOnce(t *testing.T) {
	f := &fakeRestorer{}
	b := New(f, logger.Discard())
	scope := authenticatedScope(t)

	b.RestoreIfNeeded(context.Background(), scope)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "old-access", f.gotAccess)
	assert.Equal(t, "old-refresh", f.gotRefresh)
	require.True(t, scope.Backend.Active())
	assert.Equal(t, "new-access", scope.Web.Get(AccessTokenKey))
	assert.Equal(t, "new-refresh", scope.Web.Get(RefreshTokenKey))

	b.RestoreIfNeeded(context.Background(), scope)
	assert.Equal(t, 1, f.calls, "no second attempt once the backend session is active")
}

func TestRestoreIfNeeded_NoopWhenBackendActive(t *testing.T) {
	f := &fakeRestorer{}
	b := New(f, logger.Discard())
	scope := authenticatedScope(t)
	scope.Backend = &backend.Session{User: &backend.User{ID: "u-1"}}

	b.RestoreIfNeeded(context.Background(), scope)
	assert.Zero(t, f.calls)
}

func TestRestoreIfNeeded_NoopWithoutAccessToken(t *testing.T) {
	f := &fakeRestorer{}
	b := New(f, logger.Discard())
	scope := authenticatedScope(t)
	scope.Web.Delete(AccessTokenKey)

	b.RestoreIfNeeded(context.Background(), scope)
	assert.Zero(t, f.calls)
	assert.Nil(t, scope.Backend)
}

func TestRestoreIfNeeded_NoopForAnonymous(t *testing.T) {
	f := &fakeRestorer{}
	b := New(f, logger.Discard())
	scope := authenticatedScope(t)
	scope.Principal = nil

	b.RestoreIfNeeded(context.Background(), scope)
	b.RestoreIfNeeded(context.Background(), nil)
	assert.Zero(t, f.calls)
}

func TestRestoreIfNeeded_FailureIsSwallowed(t *testing.T) {
	f := &fakeRestorer{
		SetSessionFn: func(string, string) (*backend.Session, error) {
			return nil, errors.New("backend down")
		},
	}
	b := New(f, logger.Discard())
	scope := authenticatedScope(t)

	assert.NotPanics(t, func() { b.RestoreIfNeeded(context.Background(), scope) })
	assert.Equal(t, 1, f.calls)
	assert.Nil(t, scope.Backend)
	assert.Equal(t, "old-access", scope.Web.Get(AccessTokenKey))
}

func TestMiddleware_AttachesScope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		principal.Set(c, &principal.Principal{UserID: "u-9"})
		c.Next()
	})
	r.Use(Middleware())

	var got *Scope
	r.GET("/", func(c *gin.Context) {
		got = ScopeFrom(c)
		assert.Same(t, got, ScopeFrom(c))
		c.Status(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.Equal(t, "u-9", got.Principal.UserID)
	assert.NotNil(t, got.Web)
	assert.Nil(t, got.Backend)
}
