package handler

import (
	"html/template"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/middleware"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/repository"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/websession"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// RouterDeps is everything NewRouter wires together.
type RouterDeps struct {
	DB        *gorm.DB
	Templates *template.Template
	Logger    *slog.Logger

	Sessions *websession.Store
	Issuer   *principal.Issuer
	Auth     Authenticator
	Books    repository.BookRepository

	StorageDir        string
	StoragePublicPath string
	MaxUploadBytes    int64
	RateLimitAuth     int
	CookieSecure      bool

	StartTime time.Time
	Version   string
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	e := gin.New()
	e.Use(gin.Recovery(), middleware.RequestLogger(d.Logger))

	if err := e.SetTrustedProxies([]string{
		"127.0.0.1",
		"::1",
	}); err != nil {
		d.Logger.Warn("failed to set trusted proxies", "error", err)
	}

	e.MaxMultipartMemory = d.MaxUploadBytes + 1<<20
	e.SetHTMLTemplate(d.Templates)

	healthHandler := NewHealthHandler(d.DB, d.StorageDir, d.StartTime, d.Version)
	healthHandler.RegisterRoutes(e)

	e.Static(d.StoragePublicPath, d.StorageDir)
	e.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	app := e.Group("")
	app.Use(
		d.Sessions.Middleware(),
		d.Issuer.Middleware(),
		bridge.Middleware(),
		middleware.CSRF(middleware.CSRFOptions{Secure: d.CookieSecure}),
	)
	{
		app.GET("/", Home)

		limiter := middleware.NewRateLimiter(d.RateLimitAuth)
		authHandler := NewAuthHandler(d.Auth, d.Issuer, d.Logger)
		authHandler.RegisterRoutes(app, limiter.Middleware())

		html := app.Group("", principal.RequireHTML("/auth/login"))
		bookHandler := NewBookHandler(d.Books, d.Logger)
		bookHandler.RegisterRoutes(html)

		api := app.Group("/api", principal.RequireAPI())
		apiBookHandler := NewAPIBookHandler(d.Books, d.Logger)
		apiBookHandler.RegisterRoutes(api)
	}

	e.NoRoute(d.Issuer.Middleware(), NotFound)

	return e
}
