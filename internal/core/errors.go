package core

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks input that cannot be imported at all.
	ErrMalformedInput = errors.New("invalid csv")

	// ErrPermissionDenied is wrapped by stores when a write is refused for lack of privileges.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned by store lookups that match nothing.
	ErrNotFound = errors.New("record not found")

	// ErrCancelled is returned when an import is cancelled between batches.
	ErrCancelled = errors.New("import cancelled")

	// ErrAuditUnavailable is returned when the audit log is not persisted.
	ErrAuditUnavailable = errors.New("audit log not available")

	// ErrUnknownEntity is returned for entity names with no registered schema.
	ErrUnknownEntity = errors.New("unknown entity")
)

// FatalInputError aborts an import before any row is processed:
// empty file, missing header, zero data rows, missing required column.
type FatalInputError struct {
	Message string
	Err     error
}

func (e *FatalInputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *FatalInputError) Unwrap() error {
	return e.Err
}

// ErrorKind classifies a per-row failure.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindStore            ErrorKind = "store"
	KindPermissionDenied ErrorKind = "permission_denied"
)

// RowError is a failure recorded against a single source line. The import continues.
type RowError struct {
	Row     int       `json:"row"`
	Message string    `json:"message"`
	Kind    ErrorKind `json:"kind"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Row, e.Message)
}

// RowWarning is a non-fatal note about a row: an unparseable date, an unknown
// column, a child record that could not be written.
type RowWarning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// newStoreRowError classifies a store failure for the given line.
func newStoreRowError(line int, err error) *RowError {
	kind := KindStore
	if errors.Is(err, ErrPermissionDenied) {
		kind = KindPermissionDenied
	}
	return &RowError{Row: line, Message: err.Error(), Kind: kind}
}
