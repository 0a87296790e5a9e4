package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations is an ordered list of statement groups. Each group runs in one
// transaction and is recorded in schema_migrations by its 1-based index.
// Append new groups; never edit an applied one.
var migrations = [][]string{
	{
		`CREATE TABLE users (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email        TEXT UNIQUE,
			display_name TEXT,
			full_name    TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX users_email_lower ON users (lower(email))`,

		`CREATE TABLE leads (
			id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name                TEXT NOT NULL,
			company             TEXT NOT NULL,
			email               TEXT,
			phone               TEXT,
			status              TEXT,
			source              TEXT,
			estimated_value     NUMERIC,
			expected_close_date DATE,
			owner_id            UUID,
			last_contacted_at   TIMESTAMPTZ,
			notes               TEXT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX leads_natural_key ON leads (name, company)`,

		`CREATE TABLE meetings (
			id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			title        TEXT NOT NULL,
			start_time   TIMESTAMPTZ NOT NULL,
			end_time     TIMESTAMPTZ,
			location     TEXT,
			meeting_type TEXT,
			status       TEXT,
			organizer_id UUID,
			notes        TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX meetings_natural_key ON meetings (title, start_time)`,

		`CREATE TABLE action_items (
			seq         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			id          UUID NOT NULL UNIQUE DEFAULT gen_random_uuid(),
			meeting_id  UUID NOT NULL REFERENCES meetings (id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			assignee_id UUID,
			due_date    DATE,
			status      TEXT
		)`,
		`CREATE INDEX action_items_meeting ON action_items (meeting_id)`,
	},
	{
		`CREATE TABLE audit_log (
			id            BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
			action        TEXT NOT NULL,
			severity      TEXT NOT NULL,
			entity        TEXT NOT NULL,
			import_id     UUID,
			file_name     TEXT,
			line          INTEGER,
			row_key       TEXT,
			rows_affected INTEGER,
			reason        TEXT,
			ip_address    INET,
			user_agent    TEXT,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX audit_log_entity_created ON audit_log (entity, created_at DESC)`,
	},
}

// Migrate applies pending migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	for i, stmts := range migrations {
		version := i + 1

		var exists bool
		if err := pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %d: %w", version, err)
		}
		if exists {
			continue
		}

		err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			for _, stmt := range stmts {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return err
				}
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d: %w", version, err)
		}
	}
	return nil
}
