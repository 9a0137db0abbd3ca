package handler

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db         *gorm.DB
	storageDir string
	startTime  time.Time
	version    string
}

func NewHealthHandler(db *gorm.DB, storageDir string, startTime time.Time, version string) *HealthHandler {
	return &HealthHandler{
		db:         db,
		storageDir: storageDir,
		startTime:  startTime,
		version:    version,
	}
}

func (h *HealthHandler) RegisterRoutes(e *gin.Engine) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
}

// Health godoc
// @Summary      Liveness probe
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Router       /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready godoc
// @Summary      Readiness probe
// @Description  Pings the backend database and checks the object storage directory
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]any
// @Failure      503  {object}  map[string]any
// @Router       /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := gin.H{}
	ready := true

	if err := h.pingDB(c); err != nil {
		ready = false
		checks["db"] = gin.H{"status": "down", "error": err.Error()}
	} else {
		checks["db"] = gin.H{"status": "up"}
	}

	if info, err := os.Stat(h.storageDir); err != nil || !info.IsDir() {
		ready = false
		msg := "not a directory"
		if err != nil {
			msg = err.Error()
		}
		checks["storage"] = gin.H{"status": "down", "error": msg}
	} else {
		checks["storage"] = gin.H{"status": "up"}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":  status,
		"version": h.version,
		"uptime":  int64(time.Since(h.startTime).Seconds()),
		"checks":  checks,
	})
}

func (h *HealthHandler) pingDB(c *gin.Context) error {
	sqlDB, err := h.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(c.Request.Context())
}
