// Package core provides the business logic for CSV import and export.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # File Errors (CSV001-CSV099)
//
//	CSV001 - Invalid CSV: File could not be parsed as CSV
//	         Action: Ensure file is comma-separated with balanced quotes
//	         Patterns: "invalid csv"
//
//	CSV002 - Empty file: The file has no header or no data rows
//	         Action: Upload a CSV file with a header row and data rows
//	         Patterns: "empty file", "no data rows"
//
//	CSV003 - Encoding error: File contains invalid characters
//	         Action: Save file as UTF-8 encoding
//	         Patterns: "encoding error"
//
//	CSV004 - File too large: File exceeds maximum size limit
//	         Action: Split the file into smaller chunks
//	         Patterns: "file too large"
//
//	CSV005 - No file: No file was provided
//	         Action: Select a CSV file to import
//	         Patterns: "no file provided"
//
// # Header Mapping Errors (MAP001-MAP099)
//
//	MAP001 - Missing column: A natural-key column is missing from the header
//	         Action: Add the column named in the message, or download the template
//	         Patterns: "missing required column"
//
//	MAP002 - Unknown column: A column will be ignored
//	         Action: Rename the column to match the template if it should be imported
//	         Patterns: "unknown column"
//
// # Row Errors (ROW001-ROW099)
//
//	ROW001 - Required field: A required value is empty or invalid
//	         Patterns: "required field"
//	ROW002 - Invalid date      Patterns: "invalid date"
//	ROW003 - Invalid enum      Patterns: "invalid enum"
//	ROW004 - Invalid number    Patterns: "invalid number"
//
// # Store Errors (STO001-STO099)
//
//	STO001 - Permission denied: The store refused the write
//	         Patterns: "permission denied"
//	STO002 - Duplicate key     Patterns: "duplicate key", "unique constraint"
//	STO003 - Connection        Patterns: "connection refused", "connection reset"
//	STO004 - Timeout           Patterns: "timeout"
//	STO005 - Deadlock          Patterns: "deadlock", "database is locked"
//	STO006 - Not found         Patterns: "record not found"
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Import cancelled          Patterns: "import cancelled"
//	IMP002 - System busy               Patterns: "too many concurrent imports"
//	IMP003 - Import not found          Patterns: "import not found"
//	IMP004 - Unknown entity            Patterns: "unknown entity"
//	IMP005 - Request cancelled         Patterns: "context canceled"
//	IMP006 - Request timeout           Patterns: "context deadline exceeded"
//
// # Audit Errors (AUD001)
//
//	AUD001 - Audit log unavailable     Patterns: "audit log not available"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests        Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Support staff should check the
// application logs for the original technical error.
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are defined
// before general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Store Errors (STO001-STO006)
	// Permission comes first: its message may quote any other pattern.
	// =========================================================================
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "You do not have permission to modify this record",
			Action:  "Ask an administrator for write access or remove the row",
			Code:    "STO001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Remove the duplicate row or supply the existing record's id",
			Code:    "STO002",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "A record with this key already exists",
			Action:  "Remove the duplicate row or supply the existing record's id",
			Code:    "STO002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "STO003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "STO003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try importing a smaller file or try again later",
			Code:    "STO004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "STO005",
		},
	},
	{
		pattern: "database is locked",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "STO005",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP006)
	// =========================================================================
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Rows processed before cancellation were kept. Re-import to finish",
			Code:    "IMP001",
		},
	},
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import not found",
		msg: UserMessage{
			Message: "Import not found",
			Action:  "The import may have expired. Please start a new import",
			Code:    "IMP003",
		},
	},
	{
		pattern: "unknown entity",
		msg: UserMessage{
			Message: "Unknown entity type",
			Action:  "Choose one of the listed entities",
			Code:    "IMP004",
		},
	},

	// =========================================================================
	// File Errors (CSV001-CSV005)
	// =========================================================================
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The file is empty",
			Action:  "Upload a CSV file with a header row and data rows",
			Code:    "CSV002",
		},
	},
	{
		pattern: "no data rows",
		msg: UserMessage{
			Message: "The file has a header but no data rows",
			Action:  "Upload a CSV file with a header row and data rows",
			Code:    "CSV002",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with balanced quotes",
			Code:    "CSV001",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "CSV003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "CSV004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was provided",
			Action:  "Select a CSV file to import",
			Code:    "CSV005",
		},
	},

	// =========================================================================
	// Header Mapping Errors (MAP001-MAP002)
	// =========================================================================
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "A required column is missing from the file",
			Action:  "Add the missing column or start from the template",
			Code:    "MAP001",
		},
	},
	{
		pattern: "unknown column",
		msg: UserMessage{
			Message: "A column was not recognized and will be ignored",
			Action:  "Rename the column to match the template if it should be imported",
			Code:    "MAP002",
		},
	},

	// =========================================================================
	// Row Errors (ROW001-ROW004)
	// =========================================================================
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty or invalid",
			Action:  "Fill in the field for this row",
			Code:    "ROW001",
		},
	},
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, DD-MM-YYYY, MM/DD/YYYY or DD.MM.YYYY",
			Code:    "ROW002",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "ROW003",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal number",
			Code:    "ROW004",
		},
	},

	// =========================================================================
	// Generic context errors (IMP005-IMP006) and lookups (STO006)
	// =========================================================================
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try importing a smaller file or check your connection",
			Code:    "IMP006",
		},
	},
	{
		pattern: "record not found",
		msg: UserMessage{
			Message: "Record not found",
			Action:  "Verify the id is correct",
			Code:    "STO006",
		},
	},

	{
		pattern: "audit log not available",
		msg: UserMessage{
			Message: "The audit log is not stored by this deployment",
			Action:  "Check the server logs for audit entries",
			Code:    "AUD001",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
// Example:
//
//	msg := MapError(errors.New(`missing required column "Lead Name"`))
//	// msg.Code == "MAP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// generic ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with the message shown to users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
