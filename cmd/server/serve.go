package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/snnyvrz/shelfshare/apps/catalog/internal/auth"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/bridge"
	docs "github.com/snnyvrz/shelfshare/apps/catalog/internal/docs"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/handler"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/principal"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/repository"
	"github.com/snnyvrz/shelfshare/apps/catalog/internal/web"
)

const shutdownTimeout = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		startTime := time.Now()

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		a, err := setup(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		gin.SetMode(a.cfg.GinMode)

		if err := a.migrate(ctx); err != nil {
			return err
		}
		if err := os.MkdirAll(a.cfg.StorageDir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}

		tmpl, err := web.Templates()
		if err != nil {
			return fmt.Errorf("parse templates: %w", err)
		}

		docs.SwaggerInfo.BasePath = "/api"

		br := bridge.New(a.backend.Auth, a.logger)
		authService := auth.NewService(a.backend.Auth, br, a.logger)
		books := repository.NewBackendBookRepository(a.backend, br, authService, a.logger)

		router := handler.NewRouter(handler.RouterDeps{
			DB:                a.db,
			Templates:         tmpl,
			Logger:            a.logger,
			Sessions:          a.sessions,
			Issuer:            principal.NewIssuer(a.cfg.SessionSecret, a.cfg.SessionTTL, a.cfg.CookieSecure),
			Auth:              authService,
			Books:             books,
			StorageDir:        a.cfg.StorageDir,
			StoragePublicPath: a.cfg.StoragePublicPath,
			MaxUploadBytes:    a.cfg.MaxUploadBytes,
			RateLimitAuth:     a.cfg.RateLimitAuth,
			CookieSecure:      a.cfg.CookieSecure,
			StartTime:         startTime,
			Version:           appVersion,
		})

		srv := &http.Server{
			Addr:              a.cfg.Addr(),
			Handler:           router,
			IdleTimeout:       time.Minute,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		}

		shutdownErr := make(chan error, 1)
		go func() {
			<-ctx.Done()
			a.logger.Info("shutting down server")

			sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer scancel()
			shutdownErr <- srv.Shutdown(sctx)
		}()

		a.logger.Info("starting server", "addr", srv.Addr, "mode", a.cfg.GinMode, "version", appVersion)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		if err := <-shutdownErr; err != nil {
			return err
		}

		a.logger.Info("server stopped")
		return nil
	},
}
