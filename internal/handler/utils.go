package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/middleware"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
)

const flashCookieName = "bookshelf_flash"

// parseID reads a positive integer :id path parameter.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// render adds the layout data every page needs.
func render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["CSRFToken"] = middleware.CSRFToken(c)
	if p := principal.From(c); p != nil {
		data["User"] = p
	}
	if _, ok := data["Flash"]; !ok {
		if msg := popFlash(c); msg != "" {
			data["Flash"] = msg
		}
	}
	c.HTML(status, name, data)
}

// redirectWithFlash answers 303 so the browser follows up with a GET.
func redirectWithFlash(c *gin.Context, location, message string) {
	if message != "" {
		setFlash(c, message)
	}
	c.Redirect(http.StatusSeeOther, location)
}

func setFlash(c *gin.Context, message string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, message, 60, "/", "", c.Request.TLS != nil, true)
}

func popFlash(c *gin.Context) string {
	msg, err := c.Cookie(flashCookieName)
	if err != nil || msg == "" {
		return ""
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(flashCookieName, "", -1, "/", "", c.Request.TLS != nil, true)
	return msg
}

// safeReturnURL only allows local absolute paths.
func safeReturnURL(u, fallback string) string {
	if u == "" || !strings.HasPrefix(u, "/") || strings.HasPrefix(u, "//") || strings.HasPrefix(u, "/\\") {
		return fallback
	}
	return u
}
