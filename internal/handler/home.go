package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
)

func Home(c *gin.Context) {
	if principal.From(c) != nil {
		c.Redirect(http.StatusFound, "/books")
		return
	}
	render(c, http.StatusOK, "home.html", gin.H{"Title": "Welcome"})
}

func NotFound(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
		return
	}
	renderNotFound(c)
}
