package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DefaultMaxAttempts     = 10
	DefaultDelayBetweenTry = 2 * time.Second
)

// Dialector picks the gorm driver for a backend URL.
// postgres:// and postgresql:// go to PostgreSQL; sqlite://path and file: go to SQLite.
func Dialector(url string) (gorm.Dialector, error) {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return postgres.Open(url), nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return nil, fmt.Errorf("sqlite url %q has no path", url)
		}
		return sqlite.Open(path), nil
	case strings.HasPrefix(url, "file:"):
		return sqlite.Open(url), nil
	}
	return nil, fmt.Errorf("unsupported backend url scheme: %q", url)
}

func Open(url string) (*gorm.DB, error) {
	dialector, err := Dialector(url)
	if err != nil {
		return nil, err
	}

	return gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
}

// ConnectWithRetry opens the database and pings it until it answers, up to
// attempts times. A bad URL fails immediately.
func ConnectWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	if _, err := Dialector(url); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var gdb *gorm.DB
		gdb, err = Open(url)
		if err == nil {
			sqlDB, err2 := gdb.DB()
			if err2 == nil {
				pingErr := sqlDB.PingContext(ctx)
				if pingErr == nil {
					return gdb, nil
				}
				_ = sqlDB.Close()
				err = pingErr
			} else {
				err = err2
			}
		}

		slog.Warn("db not ready", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("could not connect to db after %d attempts: %w", attempts, err)
}
