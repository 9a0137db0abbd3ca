package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/validation"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

// Authenticator is the account service behind the auth pages.
type Authenticator interface {
	Register(ctx context.Context, scope *bridge.Scope, email, password string) bool
	Login(ctx context.Context, scope *bridge.Scope, email, password string) bool
	Logout(ctx context.Context, scope *bridge.Scope) bool
	CurrentUser(scope *bridge.Scope) *backend.User
}

type AuthHandler struct {
	auth   Authenticator
	issuer *principal.Issuer
	logger *slog.Logger
}

func NewAuthHandler(auth Authenticator, issuer *principal.Issuer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, issuer: issuer, logger: logger}
}

// RegisterRoutes mounts /auth. guards run in front of the credential POSTs.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, guards ...gin.HandlerFunc) {
	guarded := func(next gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, guards...), next)
	}

	auth := r.Group("/auth")
	{
		auth.GET("/login", h.LoginForm)
		auth.POST("/login", guarded(h.Login)...)
		auth.GET("/register", h.RegisterForm)
		auth.POST("/register", guarded(h.Register)...)
		auth.POST("/logout", h.Logout)
	}
}

func (h *AuthHandler) LoginForm(c *gin.Context) {
	if principal.From(c) != nil {
		c.Redirect(http.StatusFound, "/books")
		return
	}
	render(c, http.StatusOK, "login.html", gin.H{
		"Title": "Sign in",
		"Form":  LoginForm{ReturnURL: c.Query("returnUrl")},
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var form LoginForm
	if err := c.ShouldBind(&form); err != nil {
		form.Password = ""
		render(c, http.StatusUnprocessableEntity, "login.html", gin.H{
			"Title":  "Sign in",
			"Form":   form,
			"Errors": validation.FromBindingError(err).Map(),
		})
		return
	}

	scope := bridge.ScopeFrom(c)
	if !h.auth.Login(c.Request.Context(), scope, form.Email, form.Password) {
		form.Password = ""
		render(c, http.StatusUnauthorized, "login.html", gin.H{
			"Title": "Sign in",
			"Form":  form,
			"Error": "Invalid email or password.",
		})
		return
	}

	user := h.auth.CurrentUser(scope)
	if user == nil {
		h.logger.Error("login succeeded without a user", "email", form.Email)
		renderError(c, http.StatusInternalServerError, "Signing in failed. Please try again.")
		return
	}

	if err := websession.FromContext(c).Renew(); err != nil {
		h.logger.Error("failed to renew web session", "email", form.Email, "error", err)
	}

	p := principal.Principal{UserID: user.ID, Email: user.Email}
	if err := h.issuer.SignIn(c, p); err != nil {
		h.logger.Error("failed to issue principal cookie", "email", form.Email, "error", err)
		renderError(c, http.StatusInternalServerError, "Signing in failed. Please try again.")
		return
	}
	scope.Principal = &p

	redirectWithFlash(c, safeReturnURL(form.ReturnURL, "/books"), "Welcome back, "+user.Email+".")
}

func (h *AuthHandler) RegisterForm(c *gin.Context) {
	if principal.From(c) != nil {
		c.Redirect(http.StatusFound, "/books")
		return
	}
	render(c, http.StatusOK, "register.html", gin.H{
		"Title": "Register",
		"Form":  RegisterForm{},
	})
}

func (h *AuthHandler) Register(c *gin.Context) {
	var form RegisterForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusUnprocessableEntity, "register.html", gin.H{
			"Title":  "Register",
			"Form":   RegisterForm{Email: form.Email},
			"Errors": validation.FromBindingError(err).Map(),
		})
		return
	}

	if !h.auth.Register(c.Request.Context(), bridge.ScopeFrom(c), form.Email, form.Password) {
		render(c, http.StatusBadRequest, "register.html", gin.H{
			"Title": "Register",
			"Form":  RegisterForm{Email: form.Email},
			"Error": "Registration failed. The email may already be registered.",
		})
		return
	}

	redirectWithFlash(c, "/auth/login", "Registration successful. Please sign in.")
}

// Logout always ends the local sign-in, even if the backend sign-out fails.
func (h *AuthHandler) Logout(c *gin.Context) {
	scope := bridge.ScopeFrom(c)

	if !h.auth.Logout(c.Request.Context(), scope) {
		h.logger.Warn("backend sign-out failed, clearing local session anyway")
	}

	h.issuer.SignOut(c)
	scope.Principal = nil
	websession.FromContext(c).Clear()

	redirectWithFlash(c, "/", "You have been signed out.")
}
