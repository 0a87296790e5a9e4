package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Resolve implements core.PrincipalDirectory against the users table.
// Display name wins over full name, which wins over email. Comparison is
// case-insensitive.
func (s *Store) Resolve(ctx context.Context, text string) (string, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false, nil
	}

	var id string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text FROM users
		WHERE lower(email) = lower($1)
		   OR lower(display_name) = lower($1)
		   OR lower(full_name) = lower($1)
		ORDER BY CASE
			WHEN lower(display_name) = lower($1) THEN 0
			WHEN lower(full_name) = lower($1) THEN 1
			ELSE 2
		END, created_at
		LIMIT 1`, text).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapError("resolve principal", err)
	}
	return id, true, nil
}

// AddUser inserts a principal and returns its id.
func (s *Store) AddUser(ctx context.Context, email, displayName, fullName string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (email, display_name, full_name) VALUES ($1, $2, $3) RETURNING id::text`,
		nullIfEmpty(email), nullIfEmpty(displayName), nullIfEmpty(fullName),
	).Scan(&id)
	if err != nil {
		return "", wrapError("insert user", err)
	}
	return id, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
