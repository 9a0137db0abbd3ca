package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
)

type fakeAuthenticator struct {
	RegisterFn func(ctx context.Context, scope *bridge.Scope, email, password string) bool
	LoginFn    func(ctx context.Context, scope *bridge.Scope, email, password string) bool
	LogoutFn   func(ctx context.Context, scope *bridge.Scope) bool

	user        *backend.User
	logoutCalls int
}

func (f *fakeAuthenticator) Register(ctx context.Context, scope *bridge.Scope, email, password string) bool {
	if f.RegisterFn != nil {
		return f.RegisterFn(ctx, scope, email, password)
	}
	return true
}

func (f *fakeAuthenticator) Login(ctx context.Context, scope *bridge.Scope, email, password string) bool {
	if f.LoginFn != nil {
		return f.LoginFn(ctx, scope, email, password)
	}
	return true
}

func (f *fakeAuthenticator) Logout(ctx context.Context, scope *bridge.Scope) bool {
	f.logoutCalls++
	if f.LogoutFn != nil {
		return f.LogoutFn(ctx, scope)
	}
	return true
}

func (f *fakeAuthenticator) CurrentUser(scope *bridge.Scope) *backend.User {
	return f.user
}

func setupAuthRouter(t *testing.T, auth Authenticator) (*gin.Engine, *principal.Issuer) {
	t.Helper()

	issuer := principal.NewIssuer("test-secret", time.Hour, false)
	r := newTestEngine(t)
	r.Use(issuer.Middleware())

	h := NewAuthHandler(auth, issuer, nil)
	h.RegisterRoutes(r.Group(""))
	return r, issuer
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLogin_Success(t *testing.T) {
	var gotEmail string
	auth := &fakeAuthenticator{
		user: &backend.User{ID: "user-1", Email: "ada@example.com"},
		LoginFn: func(ctx context.Context, scope *bridge.Scope, email, password string) bool {
			gotEmail = email
			return password == "secret1"
		},
	}
	router, issuer := setupAuthRouter(t, auth)

	values := url.Values{
		"email":     {"ada@example.com"},
		"password":  {"secret1"},
		"returnUrl": {"/books/3"},
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/login", values))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d, body=%s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/books/3" {
		t.Errorf("expected redirect to returnUrl, got %q", loc)
	}
	if gotEmail != "ada@example.com" {
		t.Errorf("unexpected email %q", gotEmail)
	}

	c := cookieNamed(w, principal.DefaultCookieName)
	if c == nil {
		t.Fatalf("expected principal cookie")
	}
	p, err := issuer.Parse(c.Value)
	if err != nil {
		t.Fatalf("failed to parse principal cookie: %v", err)
	}
	if p.UserID != "user-1" || p.Email != "ada@example.com" {
		t.Errorf("unexpected principal %+v", p)
	}
}

func TestLogin_RejectsExternalReturnURL(t *testing.T) {
	auth := &fakeAuthenticator{user: &backend.User{ID: "user-1", Email: "ada@example.com"}}
	router, _ := setupAuthRouter(t, auth)

	for _, target := range []string{"https://evil.example", "//evil.example", "/\\evil.example"} {
		values := url.Values{
			"email":     {"ada@example.com"},
			"password":  {"secret1"},
			"returnUrl": {target},
		}

		w := httptest.NewRecorder()
		router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/login", values))

		if loc := w.Header().Get("Location"); loc != "/books" {
			t.Errorf("returnUrl %q: expected redirect to /books, got %q", target, loc)
		}
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	auth := &fakeAuthenticator{
		LoginFn: func(ctx context.Context, scope *bridge.Scope, email, password string) bool { return false },
	}
	router, _ := setupAuthRouter(t, auth)

	values := url.Values{"email": {"ada@example.com"}, "password": {"wrong-password"}}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/login", values))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Invalid email or password.") {
		t.Errorf("expected generic failure message")
	}
	if strings.Contains(body, "wrong-password") {
		t.Errorf("password must not be echoed back")
	}
	if cookieNamed(w, principal.DefaultCookieName) != nil {
		t.Errorf("no principal cookie expected")
	}
}

func TestLogin_ValidationError(t *testing.T) {
	called := false
	auth := &fakeAuthenticator{
		LoginFn: func(ctx context.Context, scope *bridge.Scope, email, password string) bool {
			called = true
			return true
		},
	}
	router, _ := setupAuthRouter(t, auth)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/login", url.Values{"email": {"not-an-email"}}))

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", w.Code)
	}
	if called {
		t.Errorf("Login must not be called for invalid input")
	}
}

func TestLoginForm_RedirectsSignedInUser(t *testing.T) {
	router, issuer := setupAuthRouter(t, &fakeAuthenticator{})

	token, err := issuer.Sign(principal.Principal{UserID: "user-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("failed to sign principal: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, "/auth/login", nil)
	req.AddCookie(&http.Cookie{Name: principal.DefaultCookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", w.Code)
	}
}

func TestRegister_Success(t *testing.T) {
	router, _ := setupAuthRouter(t, &fakeAuthenticator{})

	values := url.Values{
		"email":            {"ada@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/register", values))

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d, body=%s", w.Code, w.Body.String())
	}
	if loc := w.Header().Get("Location"); loc != "/auth/login" {
		t.Errorf("expected redirect to login, got %q", loc)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	router, _ := setupAuthRouter(t, &fakeAuthenticator{})

	tests := []struct {
		name   string
		values url.Values
		want   string
	}{
		{
			name:   "short password",
			values: url.Values{"email": {"ada@example.com"}, "password": {"123"}, "confirm_password": {"123"}},
			want:   "password must be at least 6 characters",
		},
		{
			name:   "mismatch",
			values: url.Values{"email": {"ada@example.com"}, "password": {"secret1"}, "confirm_password": {"secret2"}},
			want:   "confirm_password does not match",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/register", tt.values))

			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("expected status 422, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("expected %q in body", tt.want)
			}
		})
	}
}

func TestRegister_BackendFailure(t *testing.T) {
	auth := &fakeAuthenticator{
		RegisterFn: func(ctx context.Context, scope *bridge.Scope, email, password string) bool { return false },
	}
	router, _ := setupAuthRouter(t, auth)

	values := url.Values{
		"email":            {"ada@example.com"},
		"password":         {"secret1"},
		"confirm_password": {"secret1"},
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, formRequest(http.MethodPost, "/auth/register", values))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestLogout_ClearsPrincipalEvenWhenBackendFails(t *testing.T) {
	auth := &fakeAuthenticator{
		LogoutFn: func(ctx context.Context, scope *bridge.Scope) bool { return false },
	}
	router, issuer := setupAuthRouter(t, auth)

	token, err := issuer.Sign(principal.Principal{UserID: "user-1", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("failed to sign principal: %v", err)
	}

	req := formRequest(http.MethodPost, "/auth/logout", url.Values{})
	req.AddCookie(&http.Cookie{Name: principal.DefaultCookieName, Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", w.Code)
	}
	if auth.logoutCalls != 1 {
		t.Errorf("expected one logout call, got %d", auth.logoutCalls)
	}
	c := cookieNamed(w, principal.DefaultCookieName)
	if c == nil || c.MaxAge >= 0 {
		t.Errorf("expected principal cookie to be expired, got %+v", c)
	}
}
