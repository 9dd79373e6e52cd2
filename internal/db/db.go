package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/evotar/apiserver/config"
	"github.com/evotar/apiserver/internal/obs"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const (
	pingTimeout   = 5 * time.Second
	connMaxIdle   = 2 * time.Minute
	connMaxLife   = 30 * time.Minute
	retryInterval = time.Second
)

// PostgresURL builds the connection URL from config. DATABASE_URL wins when set.
func PostgresURL(cfg config.Config) string {
	if cfg.Database.URL != "" {
		return cfg.Database.URL
	}

	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port),
		User:     url.UserPassword(cfg.Database.User, cfg.Database.Password),
		Path:     cfg.Database.DBName,
		RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
	}
	return u.String()
}

// Driver returns the database/sql driver name: "postgres" (lib/pq) or "pgx".
func Driver(cfg config.Config) string {
	if cfg.Database.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

// Open opens the pool and pings it up to ConnectAttempts times, one second
// apart.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open(Driver(cfg), PostgresURL(cfg))
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(connMaxIdle)
	db.SetConnMaxLifetime(connMaxLife)
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}

	if err := ping(ctx, db, max(cfg.Database.ConnectAttempts, 1)); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func ping(ctx context.Context, db *sql.DB, attempts int) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		obs.Logger().Warn("database not ready",
			slog.Int("attempt", attempt),
			slog.Any("error", err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return fmt.Errorf("ping database: %w", err)
}
