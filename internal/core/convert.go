package core

// convert.go provides conversions between raw CSV cells, canonical record
// values and PostgreSQL types.
//
// These functions handle the messy reality of user-provided CSV data:
//   - Multiple date formats (ISO, EU, US)
//   - Currency symbols and thousand separators in numbers
//   - Enum values in any letter case
//   - Excel formula prefixes (="value")
//
// Canonical values are plain strings: dates "YYYY-MM-DD", datetimes RFC3339
// in UTC, numbers as plain decimals. All ToPg* functions take canonical values
// and return pgtype values with Valid=false for empty/invalid input, allowing
// the database to handle NULLs appropriately.

import (
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

const (
	DateLayout       = "2006-01-02"
	ExportTimeLayout = "2006-01-02 15:04:05"
)

// dateLayouts are tried in order; the first that yields a valid calendar date wins.
// Day-first dashed and dotted forms precede month-first slashed forms.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"01/02/2006",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006 15:04:05",
	ExportTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2-1-2006",
	"1/2/2006",
	"2.1.2006",
	"2006-1-2",
}

// ParseDate parses a date or date-time cell. Values without a zone are UTC.
func ParseDate(s string) (time.Time, bool) {
	s = CleanCell(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeDate converts a cell to "YYYY-MM-DD".
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.Format(DateLayout), true
}

// NormalizeDateTime converts a cell to RFC3339 in UTC, midnight when no time is given.
func NormalizeDateTime(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

// cleanNumber strips currency symbols, thousands separators and accounting
// parentheses. Returns false if what remains is not a number.
func cleanNumber(s string) (string, bool) {
	s = CleanCell(s)
	if s == "" {
		return "", false
	}

	// Detect negative accounting format "(123.45)"
	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, "€", "") // Euro
	s = strings.ReplaceAll(s, "£", "") // Pound
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeNumber converts a cell to a plain decimal string.
func NormalizeNumber(s string) (string, bool) {
	n, ok := cleanNumber(s)
	if !ok {
		return "", false
	}
	if strings.ContainsAny(n, "eE") {
		f, _, err := big.ParseFloat(n, 10, 128, big.ToNearestEven)
		if err != nil {
			return "", false
		}
		return f.Text('f', -1), true
	}
	n = strings.TrimPrefix(n, "+")
	if strings.HasPrefix(n, ".") {
		n = "0" + n
	} else if strings.HasPrefix(n, "-.") {
		n = "-0" + n[1:]
	}
	return strings.TrimSuffix(n, "."), true
}

// NormalizeEnum returns the canonical spelling of s, or "" if it is not allowed.
func NormalizeEnum(s string, values []string) string {
	s = CleanCell(s)
	for _, v := range values {
		if strings.EqualFold(s, v) {
			return v
		}
	}
	return ""
}

// FormatExport renders a canonical value for a CSV export cell.
func FormatExport(spec FieldSpec, value string) string {
	if value == "" {
		return ""
	}
	switch spec.Type {
	case FieldDate:
		if t, ok := ParseDate(value); ok {
			return t.Format(DateLayout)
		}
	case FieldDateTime:
		if t, ok := ParseDate(value); ok {
			return t.UTC().Format(ExportTimeLayout)
		}
	}
	return value
}

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a date string to pgtype.Date.
func ToPgDate(s string) pgtype.Date {
	t, ok := ParseDate(s)
	if !ok {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// ToPgTimestamptz converts a date-time string to pgtype.Timestamptz.
func ToPgTimestamptz(s string) pgtype.Timestamptz {
	t, ok := ParseDate(s)
	if !ok {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, and accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	n, ok := cleanNumber(s)
	if !ok {
		return pgtype.Numeric{Valid: false}
	}

	var num pgtype.Numeric
	if err := num.Scan(n); err != nil {
		return pgtype.Numeric{Valid: false}
	}
	return num
}

// ToPgUUID converts a string to pgtype.UUID.
// Returns invalid if the string is empty or not a valid UUID.
func ToPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

// ToPgValue converts a canonical value to the pgtype matching the field type.
func ToPgValue(spec FieldSpec, value string) any {
	switch spec.Type {
	case FieldDate:
		return ToPgDate(value)
	case FieldDateTime:
		return ToPgTimestamptz(value)
	case FieldNumber:
		return ToPgNumeric(value)
	case FieldIDRef:
		return ToPgUUID(value)
	default:
		return ToPgText(value)
	}
}

// IsUUID reports whether s is a well-formed UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(strings.TrimSpace(s))
	return err == nil
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}

	return s
}
