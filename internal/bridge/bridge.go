// Package bridge keeps the backend session of a request in step with the
// token pair kept in the web session.
package bridge

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/backend"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
)

// Web session keys holding the backend tokens.
const (
	AccessTokenKey  = "AccessToken"
	RefreshTokenKey = "RefreshToken"
)

const scopeKey = "bridge.scope"

// Scope is the per-request identity context. It is created once per request
// and handed explicitly to the auth service and the repositories.
type Scope struct {
	Web       *websession.Session
	Principal *principal.Principal
	Backend   *backend.Session
}

// SessionRestorer rebuilds a backend session from a token pair.
type SessionRestorer interface {
	SetSession(ctx context.Context, accessToken, refreshToken string) (*backend.Session, error)
}

type Bridge struct {
	restorer SessionRestorer
	logger   *slog.Logger
}

func New(r SessionRestorer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{restorer: r, logger: logger}
}

// StoreTokens copies the session's tokens into the web session. Missing
// pieces are skipped.
func StoreTokens(web *websession.Session, sess *backend.Session) {
	if web == nil || sess == nil {
		return
	}
	if sess.AccessToken != "" {
		web.Set(AccessTokenKey, sess.AccessToken)
	}
	if sess.RefreshToken != "" {
		web.Set(RefreshTokenKey, sess.RefreshToken)
	}
}

func ClearTokens(web *websession.Session) {
	if web == nil {
		return
	}
	web.Delete(AccessTokenKey)
	web.Delete(RefreshTokenKey)
}

// RestoreIfNeeded re-establishes the backend session for an authenticated
// principal whose scope has none yet. It tries once and never fails the
// caller: on error the scope is left as it was.
func (b *Bridge) RestoreIfNeeded(ctx context.Context, scope *Scope) {
	if scope == nil || !scope.Principal.IsAuthenticated() || scope.Backend.Active() {
		return
	}
	if scope.Web == nil {
		return
	}

	access := scope.Web.Get(AccessTokenKey)
	if access == "" {
		return
	}
	refresh := scope.Web.Get(RefreshTokenKey)

	sess, err := b.restorer.SetSession(ctx, access, refresh)
	if err != nil {
		b.logger.Debug("could not restore backend session", "user_id", scope.Principal.UserID, "error", err)
		return
	}
	if !sess.Active() {
		return
	}

	scope.Backend = sess
	StoreTokens(scope.Web, sess)
}

// Middleware attaches a fresh Scope to every request. It must run after the
// web session and principal middlewares.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(scopeKey, &Scope{
			Web:       websession.FromContext(c),
			Principal: principal.From(c),
		})
		c.Next()
	}
}

// ScopeFrom returns the request's Scope, building one if Middleware did not
// run. Handlers that change the principal refresh Scope.Principal themselves.
func ScopeFrom(c *gin.Context) *Scope {
	if v, ok := c.Get(scopeKey); ok {
		if s, ok := v.(*Scope); ok {
			return s
		}
	}
	s := &Scope{
		Web:       websession.FromContext(c),
		Principal: principal.From(c),
	}
	c.Set(scopeKey, s)
	return s
}
