// Package store opens the configured record store backend.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/store/postgres"
	"github.com/JonMunkholm/crmsync/internal/store/sqlite"
)

// Backend is a record store that can also resolve principals and persist
// and purge the audit log.
type Backend interface {
	core.RecordStore
	core.PrincipalDirectory
	core.AuditReader
	core.AuditPurger
}

// Open connects to the backend selected by cfg, applies migrations and
// returns it with a function that releases its connections.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Backend, func(), error) {
	switch cfg.Driver() {
	case "postgres":
		pool, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.New(pool), pool.Close, nil

	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, nil, fmt.Errorf("one of DATABASE_URL or SQLITE_PATH is required")
		}
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		slog.Info("opened sqlite database", "path", cfg.SQLitePath)
		return sqlite.New(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver())
	}
}
