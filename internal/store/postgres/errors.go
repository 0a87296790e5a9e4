package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// SQLSTATE codes that mean the role may not perform the write.
const (
	codeInsufficientPrivilege = "42501"
	codeReadOnlyTransaction   = "25006"
)

// wrapError classifies err for the reconciler: missing rows become
// core.ErrNotFound and privilege failures core.ErrPermissionDenied.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeInsufficientPrivilege, codeReadOnlyTransaction:
			return fmt.Errorf("%s: %w: %s", op, core.ErrPermissionDenied, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
