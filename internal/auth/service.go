package auth

import (
	"context"
	"log/slog"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
)

// Backend is the account side of the backend service.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*backend.Session, error)
	SignIn(ctx context.Context, email, password string) (*backend.Session, error)
	SignOut(ctx context.Context, sess *backend.Session) error
}

// Service turns backend account calls into boolean results. Failures are
// logged with the email and never returned.
type Service struct {
	backend Backend
	bridge  *bridge.Bridge
	logger  *slog.Logger
}

func NewService(b Backend, br *bridge.Bridge, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: b, bridge: br, logger: logger}
}

func (s *Service) Register(ctx context.Context, scope *bridge.Scope, email, password string) bool {
	sess, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		s.logger.Warn("registration failed", "email", email, "error", err)
		return false
	}
	if !sess.Active() {
		s.logger.Warn("registration returned no user", "email", email)
		return false
	}

	s.keep(scope, sess)
	s.logger.Info("user registered", "email", email, "user_id", sess.User.ID)
	return true
}

func (s *Service) Login(ctx context.Context, scope *bridge.Scope, email, password string) bool {
	sess, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		return false
	}
	if !sess.Active() {
		s.logger.Warn("login returned no user", "email", email)
		return false
	}

	s.keep(scope, sess)
	s.logger.Info("user logged in", "email", email, "user_id", sess.User.ID)
	return true
}

// Logout signs the backend session out and clears the stored tokens. It
// reports false only when the backend call fails.
func (s *Service) Logout(ctx context.Context, scope *bridge.Scope) bool {
	if scope == nil {
		return true
	}

	s.bridge.RestoreIfNeeded(ctx, scope)

	if err := s.backend.SignOut(ctx, scope.Backend); err != nil {
		email := ""
		if scope.Principal != nil {
			email = scope.Principal.Email
		}
		s.logger.Error("logout failed", "email", email, "error", err)
		return false
	}

	bridge.ClearTokens(scope.Web)
	scope.Backend = nil
	return true
}

// CurrentUserID prefers the principal's id and falls back to the backend
// session. It returns "" when neither knows the user.
func (s *Service) CurrentUserID(scope *bridge.Scope) string {
	if scope == nil {
		return ""
	}
	if scope.Principal.IsAuthenticated() {
		return scope.Principal.UserID
	}
	if scope.Backend.Active() {
		return scope.Backend.User.ID
	}
	return ""
}

func (s *Service) IsAuthenticated(scope *bridge.Scope) bool {
	return scope != nil && scope.Principal.IsAuthenticated()
}

// CurrentUser returns the backend user of the scope after a successful login
// or registration.
func (s *Service) CurrentUser(scope *bridge.Scope) *backend.User {
	if scope == nil || !scope.Backend.Active() {
		return nil
	}
	return scope.Backend.User
}

func (s *Service) keep(scope *bridge.Scope, sess *backend.Session) {
	if scope == nil {
		return
	}
	bridge.StoreTokens(scope.Web, sess)
	scope.Backend = sess
}
