package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	driver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// wrapError maps driver errors onto the core sentinels. Read-only databases
// and authorizer refusals are permission failures.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}

	var sqlErr *driver.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() & 0xff {
		case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
			return fmt.Errorf("%s: %w: %v", op, core.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
