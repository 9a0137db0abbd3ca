// Package principal carries the authenticated web identity in a signed cookie.
package principal

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultCookieName = "bookshelf_auth"

	issuer     = "catalog-web"
	contextKey = "principal"
)

var ErrInvalid = errors.New("principal: invalid cookie")

// Principal is the signed-in user as seen by the web layer.
type Principal struct {
	UserID string
	Email  string
}

func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.UserID != ""
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies principal cookies.
type Issuer struct {
	secret     []byte
	ttl        time.Duration
	secure     bool
	cookieName string
	now        func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, secure bool) *Issuer {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Issuer{
		secret:     []byte(secret),
		ttl:        ttl,
		secure:     secure,
		cookieName: DefaultCookieName,
		now:        time.Now,
	}
}

func (i *Issuer) Sign(p Principal) (string, error) {
	now := i.now()
	c := claims{
		Email: p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
}

func (i *Issuer) Parse(token string) (*Principal, error) {
	t, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	c, ok := t.Claims.(*claims)
	if !ok || !t.Valid || c.Subject == "" {
		return nil, ErrInvalid
	}
	return &Principal{UserID: c.Subject, Email: c.Email}, nil
}

// SignIn writes the principal cookie and attaches p to the current request.
func (i *Issuer) SignIn(c *gin.Context, p Principal) error {
	token, err := i.Sign(p)
	if err != nil {
		return err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(i.cookieName, token, int(i.ttl.Seconds()), "/", "", i.secure, true)
	Set(c, &p)
	return nil
}

// SignOut expires the principal cookie and detaches the principal.
func (i *Issuer) SignOut(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(i.cookieName, "", -1, "/", "", i.secure, true)
	c.Set(contextKey, (*Principal)(nil))
}

// Middleware attaches the principal from a valid cookie. Invalid or expired
// cookies are dropped.
func (i *Issuer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(i.cookieName)
		if err == nil && token != "" {
			p, err := i.Parse(token)
			if err != nil {
				slog.Debug("dropping principal cookie", "error", err)
				c.SetSameSite(http.SameSiteLaxMode)
				c.SetCookie(i.cookieName, "", -1, "/", "", i.secure, true)
			} else {
				Set(c, p)
			}
		}
		c.Next()
	}
}

func Set(c *gin.Context, p *Principal) {
	c.Set(contextKey, p)
}

// From returns the request's principal, or nil for anonymous requests.
func From(c *gin.Context) *Principal {
	if v, ok := c.Get(contextKey); ok {
		if p, ok := v.(*Principal); ok && p.IsAuthenticated() {
			return p
		}
	}
	return nil
}

// RequireHTML redirects anonymous requests to loginPath with a returnUrl.
func RequireHTML(loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if From(c) == nil {
			target := loginPath + "?returnUrl=" + url.QueryEscape(c.Request.URL.RequestURI())
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAPI answers anonymous requests with 401.
func RequireAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if From(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHENTICATED",
				"message": "authentication required",
				"errors":  nil,
			})
			return
		}
		c.Next()
	}
}
