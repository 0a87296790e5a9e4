// Package sqlite implements core.RecordStore and core.PrincipalDirectory on a
// single SQLite file, for running without a PostgreSQL server.
//
// Every value is stored as TEXT in its canonical form, so what is read back
// compares equal to what the normalizer produced.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database at dsn with WAL mode, foreign keys and a 5s
// busy timeout. ":memory:" is allowed.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for SQLite to avoid locking issues.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return db, nil
}

var migrations = [][]string{
	{
		`CREATE TABLE users (
			id           TEXT PRIMARY KEY,
			email        TEXT UNIQUE,
			display_name TEXT,
			full_name    TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE leads (
			id                  TEXT PRIMARY KEY,
			name                TEXT NOT NULL,
			company             TEXT NOT NULL,
			email               TEXT,
			phone               TEXT,
			status              TEXT,
			source              TEXT,
			estimated_value     TEXT,
			expected_close_date TEXT,
			owner_id            TEXT,
			last_contacted_at   TEXT,
			notes               TEXT,
			created_at          DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at          DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX leads_natural_key ON leads (name, company)`,

		`CREATE TABLE meetings (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			start_time   TEXT NOT NULL,
			end_time     TEXT,
			location     TEXT,
			meeting_type TEXT,
			status       TEXT,
			organizer_id TEXT,
			notes        TEXT,
			created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at   DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX meetings_natural_key ON meetings (title, start_time)`,

		`CREATE TABLE action_items (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			meeting_id  TEXT NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			assignee_id TEXT,
			due_date    TEXT,
			status      TEXT
		)`,
		`CREATE INDEX action_items_meeting ON action_items (meeting_id)`,
	},
	{
		`CREATE TABLE audit_log (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			action        TEXT NOT NULL,
			severity      TEXT NOT NULL,
			entity        TEXT NOT NULL,
			import_id     TEXT,
			file_name     TEXT,
			line          INTEGER NOT NULL DEFAULT 0,
			row_key       TEXT,
			rows_affected INTEGER NOT NULL DEFAULT 0,
			reason        TEXT,
			ip_address    TEXT,
			user_agent    TEXT,
			created_at    TEXT NOT NULL
		)`,
		`CREATE INDEX audit_log_entity ON audit_log (entity, id)`,
	},
}

// Migrate runs all pending schema migrations, each group in its own
// transaction, tracked in schema_migrations by version number.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmts := range migrations {
		version := i + 1

		var exists int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", version, err)
		}

		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d: %w", version, err)
			}
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}
