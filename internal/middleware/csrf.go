package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	CSRFCookieName = "bookshelf_csrf"
	CSRFHeaderName = "X-CSRF-Token"
	CSRFFormField  = "csrf_token"

	csrfContextKey = "csrf_token"

	// base64url (no padding) of 32 bytes
	csrfTokenLength = 43
)

type CSRFOptions struct {
	Secure bool
}

// CSRF implements the double-submit cookie pattern. Every request gets a
// token (see CSRFToken); unsafe methods must echo it in the csrf_token form
// field or the X-CSRF-Token header.
func CSRF(opts CSRFOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CSRFCookieName)
		hadCookie := err == nil && len(token) == csrfTokenLength
		if !hadCookie {
			token, err = newCSRFToken()
			if err != nil {
				slog.Error("failed to generate csrf token", "error", err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.SetSameSite(http.SameSiteLaxMode)
			// readable by scripts so API clients can echo it in the header
			c.SetCookie(CSRFCookieName, token, 0, "/", "", opts.Secure, false)
		}
		c.Set(csrfContextKey, token)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		submitted := c.GetHeader(CSRFHeaderName)
		if submitted == "" {
			submitted = c.PostForm(CSRFFormField)
		}

		if !hadCookie || len(submitted) != csrfTokenLength ||
			subtle.ConstantTimeCompare([]byte(token), []byte(submitted)) != 1 {
			slog.Debug("CSRF rejected", "path", c.Request.URL.Path, "had_cookie", hadCookie)
			rejectCSRF(c)
			return
		}

		c.Next()
	}
}

// CSRFToken returns the token to embed in forms.
func CSRFToken(c *gin.Context) string {
	return c.GetString(csrfContextKey)
}

func rejectCSRF(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"code":    "CSRF_FAILED",
			"message": "CSRF token missing or invalid",
			"errors":  nil,
		})
		return
	}
	c.Data(http.StatusForbidden, "text/plain; charset=utf-8", []byte("The form has expired or the anti-forgery token is invalid. Go back, reload the page and try again."))
	c.Abort()
}

func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
