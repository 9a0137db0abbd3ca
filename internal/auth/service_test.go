package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/logger"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

type fakeBackend struct {
	SignUpFn     func(email, password string) (*backend.Session, error)
	SignInFn     func(email, password string) (*backend.Session, error)
	SignOutFn    func(sess *backend.Session) error
	SetSessionFn func(access, refresh string) (*backend.Session, error)

	signOutWith *backend.Session
}

func (f *fakeBackend) SignUp(_ context.Context, email, password string) (*backend.Session, error) {
	return f.SignUpFn(email, password)
}

func (f *fakeBackend) SignIn(_ context.Context, email, password string) (*backend.Session, error) {
	return f.SignInFn(email, password)
}

func (f *fakeBackend) SignOut(_ context.Context, sess *backend.Session) error {
	f.signOutWith = sess
	if f.SignOutFn == nil {
		return nil
	}
	return f.SignOutFn(sess)
}

func (f *fakeBackend) SetSession(_ context.Context, access, refresh string) (*backend.Session, error) {
	if f.SetSessionFn == nil {
		return nil, backend.ErrUnauthenticated
	}
	return f.SetSessionFn(access, refresh)
}

func liveSession() *backend.Session {
	return &backend.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		User:         &backend.User{ID: "u-1", Email: "a@x.com"},
	}
}

func newScope(t *testing.T) *bridge.Scope {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	return &bridge.Scope{Web: websession.FromContext(c)}
}

func newService(f *fakeBackend) *Service {
	return NewService(f, bridge.New(f, logger.Discard()), logger.Discard())
}

func TestRegister_StoresTokens(t *testing.T) {
	f := &fakeBackend{
		SignUpFn: func(email, password string) (*backend.Session, error) {
			assert.Equal(t, "a@x.com", email)
			assert.Equal(t, "secret1", password)
			return liveSession(), nil
		},
	}
	s := newService(f)
	scope := newScope(t)

	require.True(t, s.Register(context.Background(), scope, "a@x.com", "secret1"))

	assert.Equal(t, "access", scope.Web.Get(bridge.AccessTokenKey))
	assert.Equal(t, "refresh", scope.Web.Get(bridge.RefreshTokenKey))
	assert.Equal(t, "u-1", s.CurrentUser(scope).ID)
}

func TestRegister_Failures(t *testing.T) {
	cases := map[string]func(string, string) (*backend.Session, error){
		"backend error": func(string, string) (*backend.Session, error) { return nil, backend.ErrEmailTaken },
		"no user":       func(string, string) (*backend.Session, error) { return &backend.Session{AccessToken: "a"}, nil },
	}

	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			s := newService(&fakeBackend{SignUpFn: fn})
			scope := newScope(t)

			assert.False(t, s.Register(context.Background(), scope, "a@x.com", "secret1"))
			assert.Zero(t, scope.Web.Len())
			assert.Nil(t, scope.Backend)
		})
	}
}

func TestLogin(t *testing.T) {
	f := &fakeBackend{
		SignInFn: func(email, password string) (*backend.Session, error) {
			if password != "secret1" {
				return nil, backend.ErrInvalidCredentials
			}
			return liveSession(), nil
		},
	}
	s := newService(f)

	bad := newScope(t)
	assert.False(t, s.Login(context.Background(), bad, "a@x.com", "nope"))
	assert.Empty(t, bad.Web.Get(bridge.AccessTokenKey))

	good := newScope(t)
	assert.True(t, s.Login(context.Background(), good, "a@x.com", "secret1"))
	assert.Equal(t, "access", good.Web.Get(bridge.AccessTokenKey))
	assert.True(t, good.Backend.Active())
}

func TestLogout_RestoresThenClears(t *testing.T) {
	restored := liveSession()
	f := &fakeBackend{
		SetSessionFn: func(access, refresh string) (*backend.Session, error) {
			return restored, nil
		},
	}
	s := newService(f)

	scope := newScope(t)
	scope.Principal = &principal.Principal{UserID: "u-1", Email: "a@x.com"}
	scope.Web.Set(bridge.AccessTokenKey, "stale")
	scope.Web.Set(bridge.RefreshTokenKey, "stale-refresh")

	require.True(t, s.Logout(context.Background(), scope))

	assert.Same(t, restored, f.signOutWith)
	assert.Empty(t, scope.Web.Get(bridge.AccessTokenKey))
	assert.Empty(t, scope.Web.Get(bridge.RefreshTokenKey))
	assert.Nil(t, scope.Backend)
}

func TestLogout_BackendFailure(t *testing.T) {
	f := &fakeBackend{
		SignOutFn: func(*backend.Session) error { return errors.New("network") },
	}
	s := newService(f)
	scope := newScope(t)
	scope.Web.Set(bridge.AccessTokenKey, "a")

	assert.False(t, s.Logout(context.Background(), scope))
	assert.Equal(t, "a", scope.Web.Get(bridge.AccessTokenKey), "tokens stay when sign-out fails")
}

func TestCurrentUserID(t *testing.T) {
	s := newService(&fakeBackend{})

	assert.Empty(t, s.CurrentUserID(nil))
	assert.Empty(t, s.CurrentUserID(&bridge.Scope{}))

	fromBackend := &bridge.Scope{Backend: &backend.Session{User: &backend.User{ID: "backend-id"}}}
	assert.Equal(t, "backend-id", s.CurrentUserID(fromBackend))

	both := &bridge.Scope{
		Principal: &principal.Principal{UserID: "claim-id"},
		Backend:   &backend.Session{User: &backend.User{ID: "backend-id"}},
	}
	assert.Equal(t, "claim-id", s.CurrentUserID(both))
}

func TestIsAuthenticated(t *testing.T) {
	s := newService(&fakeBackend{})

	assert.False(t, s.IsAuthenticated(nil))
	assert.False(t, s.IsAuthenticated(&bridge.Scope{Backend: liveSession()}), "backend state alone does not authenticate")
	assert.True(t, s.IsAuthenticated(&bridge.Scope{Principal: &principal.Principal{UserID: "u-1"}}))
}
