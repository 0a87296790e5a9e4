package core

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// ----------------------------------------------------------------------------
// ToPgNumeric Tests
// ----------------------------------------------------------------------------

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
	}{
		// Valid: Basic numbers
		{name: "positive integer", input: "123", wantValid: true},
		{name: "zero", input: "0", wantValid: true},
		{name: "negative integer", input: "-456", wantValid: true},
		{name: "decimal number", input: "123.45", wantValid: true},
		{name: "leading decimal point", input: ".99", wantValid: true},

		// Valid: Currency symbols and separators
		{name: "dollar sign", input: "$1,234.56", wantValid: true},
		{name: "euro sign", input: "€1234.56", wantValid: true},
		{name: "pound sign", input: "£1234.56", wantValid: true},
		{name: "thousands separator", input: "1,234,567.89", wantValid: true},

		// Valid: Accounting format (parentheses for negative)
		{name: "accounting negative parentheses", input: "(123.45)", wantValid: true},
		{name: "accounting negative with currency", input: "($1,234.56)", wantValid: true},
		{name: "accounting negative with spaces", input: "( 999.99 )", wantValid: true},

		// Valid: Whitespace and sign
		{name: "surrounded by whitespace", input: "  123.45  ", wantValid: true},
		{name: "explicit positive sign", input: "+123", wantValid: true},
		{name: "excel formula prefix", input: `="42"`, wantValid: true},

		// Invalid
		{name: "empty string", input: "", wantValid: false},
		{name: "only whitespace", input: "   ", wantValid: false},
		{name: "alphabetic string", input: "abc", wantValid: false},
		{name: "mixed alphanumeric", input: "12abc34", wantValid: false},
		{name: "only currency symbol", input: "$", wantValid: false},
		{name: "multiple decimal points", input: "12.34.56", wantValid: false},
		{name: "double negative", input: "--123", wantValid: false},
		{name: "negative after number", input: "123-", wantValid: false},
		{name: "NaN", input: "NaN", wantValid: false},
		{name: "Infinity", input: "Infinity", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgNumeric(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToPgNumeric(%q).Valid = %v, want %v",
					tt.input, result.Valid, tt.wantValid)
				return
			}

			if tt.wantValid {
				f, err := result.Float64Value()
				if err != nil {
					t.Errorf("ToPgNumeric(%q) Float64Value error: %v", tt.input, err)
				}
				if !f.Valid {
					t.Errorf("ToPgNumeric(%q) Float64Value returned invalid", tt.input)
				}
			}
		})
	}
}

// TestToPgNumeric_SpecificValues tests that specific inputs produce expected outputs
func TestToPgNumeric_SpecificValues(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"123", 123},
		{"0", 0},
		{"-456", -456},
		{"$1,000", 1000},
		{"(25.5)", -25.5},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToPgNumeric(tt.input)
			if !result.Valid {
				t.Fatalf("ToPgNumeric(%q) returned invalid", tt.input)
			}

			f, err := result.Float64Value()
			if err != nil {
				t.Fatalf("Float64Value() error: %v", err)
			}
			if f.Float64 != tt.want {
				t.Errorf("ToPgNumeric(%q) = %v, want %v", tt.input, f.Float64, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// NormalizeNumber Tests
// ----------------------------------------------------------------------------

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"1,234.50", "1234.50", true},
		{"$99", "99", true},
		{"(12)", "-12", true},
		{".5", "0.5", true},
		{"-.5", "-0.5", true},
		{"+7", "7", true},
		{"99.", "99", true},
		{"1.5e3", "1500", true},
		{"2E-2", "0.02", true},
		{"abc", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeNumber(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeNumber(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// Date Tests
// ----------------------------------------------------------------------------

func TestToPgDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantYear  int
		wantMonth time.Month
		wantDay   int
	}{
		// Valid: ISO format (YYYY-MM-DD)
		{name: "ISO format standard", input: "2024-01-15", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "ISO format leap year Feb 29", input: "2024-02-29", wantValid: true, wantYear: 2024, wantMonth: time.February, wantDay: 29},
		{name: "ISO format single digits", input: "2024-1-5", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 5},
		{name: "year first with slash", input: "2024/01/15", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},

		// Valid: Day-first dashed and dotted
		{name: "EU dashed DD-MM-YYYY", input: "31-12-2023", wantValid: true, wantYear: 2023, wantMonth: time.December, wantDay: 31},
		{name: "EU dashed single digits", input: "5-1-2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 5},
		{name: "EU dotted DD.MM.YYYY", input: "31.12.2023", wantValid: true, wantYear: 2023, wantMonth: time.December, wantDay: 31},

		// Valid: Month-first slashed
		{name: "US format with slashes", input: "01/15/2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "US format single digit month/day", input: "1/5/2024", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 5},

		// Valid: Date-times keep their date
		{name: "RFC3339", input: "2024-01-15T10:30:00Z", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "export layout", input: "2024-01-15 10:30:00", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},

		// Valid: Whitespace and Excel prefix
		{name: "surrounding whitespace", input: "  2024-01-15  ", wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},
		{name: "excel formula prefix", input: `="2024-01-15"`, wantValid: true, wantYear: 2024, wantMonth: time.January, wantDay: 15},

		// Invalid
		{name: "empty string", input: "", wantValid: false},
		{name: "only whitespace", input: "   ", wantValid: false},
		{name: "not a date text", input: "not-a-date", wantValid: false},
		{name: "month greater than 12", input: "2024-13-01", wantValid: false},
		{name: "day greater than 31", input: "2024-01-32", wantValid: false},
		{name: "invalid Feb 29 non-leap year", input: "2023-02-29", wantValid: false},
		{name: "month zero", input: "2024-00-15", wantValid: false},
		{name: "US dashed is ambiguous and rejected", input: "01-15-2024", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgDate(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToPgDate(%q).Valid = %v, want %v",
					tt.input, result.Valid, tt.wantValid)
				return
			}

			if tt.wantValid {
				if result.Time.Year() != tt.wantYear {
					t.Errorf("ToPgDate(%q).Year = %d, want %d",
						tt.input, result.Time.Year(), tt.wantYear)
				}
				if result.Time.Month() != tt.wantMonth {
					t.Errorf("ToPgDate(%q).Month = %v, want %v",
						tt.input, result.Time.Month(), tt.wantMonth)
				}
				if result.Time.Day() != tt.wantDay {
					t.Errorf("ToPgDate(%q).Day = %d, want %d",
						tt.input, result.Time.Day(), tt.wantDay)
				}
			}
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"31-12-2023", "2023-12-31", true},
		{"12/31/2023", "2023-12-31", true},
		{"2023-12-31", "2023-12-31", true},
		{"2023-12-31T23:00:00Z", "2023-12-31", true},
		{"not-a-date", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeDate(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeDate(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeDateTime(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"2024-01-15", "2024-01-15T00:00:00Z", true},
		{"2024-01-15 09:30:00", "2024-01-15T09:30:00Z", true},
		{"2024-01-15T12:30:00+02:00", "2024-01-15T10:30:00Z", true},
		{"15-01-2024 09:30:00", "2024-01-15T09:30:00Z", true},
		{"soon", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeDateTime(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NormalizeDateTime(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToPgTimestamptz(t *testing.T) {
	ts := ToPgTimestamptz("2024-01-15T12:30:00+02:00")
	if !ts.Valid {
		t.Fatal("expected valid timestamp")
	}
	want := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	if !ts.Time.Equal(want) || ts.Time.Location() != time.UTC {
		t.Errorf("ToPgTimestamptz = %v, want %v", ts.Time, want)
	}

	if ToPgTimestamptz("").Valid {
		t.Error("empty input should be invalid")
	}
}

// ----------------------------------------------------------------------------
// NormalizeEnum Tests
// ----------------------------------------------------------------------------

func TestNormalizeEnum(t *testing.T) {
	values := []string{"New", "Contacted", "Qualified"}

	tests := []struct {
		input string
		want  string
	}{
		{"New", "New"},
		{"new", "New"},
		{"  QUALIFIED ", "Qualified"},
		{"Lost", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeEnum(tt.input, values); got != tt.want {
				t.Errorf("NormalizeEnum(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// FormatExport Tests
// ----------------------------------------------------------------------------

func TestFormatExport(t *testing.T) {
	tests := []struct {
		name  string
		spec  FieldSpec
		value string
		want  string
	}{
		{"empty", FieldSpec{Type: FieldDate}, "", ""},
		{"date", FieldSpec{Type: FieldDate}, "2024-01-15", "2024-01-15"},
		{"datetime", FieldSpec{Type: FieldDateTime}, "2024-01-15T10:30:00Z", "2024-01-15 10:30:00"},
		{"number passthrough", FieldSpec{Type: FieldNumber}, "1234.50", "1234.50"},
		{"text passthrough", FieldSpec{Type: FieldText}, "a, b", "a, b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatExport(tt.spec, tt.value); got != tt.want {
				t.Errorf("FormatExport(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// ToPgText Tests
// ----------------------------------------------------------------------------

func TestToPgText(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantValid  bool
		wantString string
	}{
		{name: "simple string", input: "hello", wantValid: true, wantString: "hello"},
		{name: "string with spaces", input: "hello world", wantValid: true, wantString: "hello world"},
		{name: "surrounded whitespace trimmed", input: "  hello world  ", wantValid: true, wantString: "hello world"},
		{name: "unicode characters", input: "café", wantValid: true, wantString: "café"},
		{name: "emoji", input: "hello \U0001F44B", wantValid: true, wantString: "hello \U0001F44B"},
		{name: "empty string", input: "", wantValid: false},
		{name: "only spaces", input: "   ", wantValid: false},
		{name: "only tabs", input: "\t\t", wantValid: false},
		{name: "only newlines", input: "\n\n", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgText(tt.input)

			if result.Valid != tt.wantValid {
				t.Errorf("ToPgText(%q).Valid = %v, want %v",
					tt.input, result.Valid, tt.wantValid)
				return
			}

			if tt.wantValid && result.String != tt.wantString {
				t.Errorf("ToPgText(%q).String = %q, want %q",
					tt.input, result.String, tt.wantString)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// UUID and ToPgValue Tests
// ----------------------------------------------------------------------------

func TestToPgUUID(t *testing.T) {
	const id = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"

	if u := ToPgUUID(id); !u.Valid {
		t.Errorf("ToPgUUID(%q) should be valid", id)
	}
	for _, bad := range []string{"", "jane@example.com", "1234"} {
		if ToPgUUID(bad).Valid {
			t.Errorf("ToPgUUID(%q) should be invalid", bad)
		}
	}

	if !IsUUID(" " + id + " ") {
		t.Error("IsUUID should trim whitespace")
	}
	if IsUUID("Jane Doe") {
		t.Error("IsUUID(\"Jane Doe\") = true")
	}
}

func TestToPgValue(t *testing.T) {
	tests := []struct {
		name  string
		typ   FieldType
		value string
		check func(any) bool
	}{
		{"text", FieldText, "x", func(v any) bool { _, ok := v.(pgtype.Text); return ok }},
		{"enum", FieldEnum, "New", func(v any) bool { _, ok := v.(pgtype.Text); return ok }},
		{"date", FieldDate, "2024-01-15", func(v any) bool { _, ok := v.(pgtype.Date); return ok }},
		{"datetime", FieldDateTime, "2024-01-15T00:00:00Z", func(v any) bool { _, ok := v.(pgtype.Timestamptz); return ok }},
		{"number", FieldNumber, "1.5", func(v any) bool { _, ok := v.(pgtype.Numeric); return ok }},
		{"idref", FieldIDRef, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", func(v any) bool { _, ok := v.(pgtype.UUID); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ToPgValue(FieldSpec{Type: tt.typ}, tt.value)
			if !tt.check(v) {
				t.Errorf("ToPgValue(%s) returned %T", tt.typ, v)
			}
		})
	}
}

// ----------------------------------------------------------------------------
// CleanCell Tests
// ----------------------------------------------------------------------------

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "empty string", input: "", want: ""},
		{name: "leading whitespace", input: "  hello", want: "hello"},
		{name: "trailing whitespace", input: "hello  ", want: "hello"},
		{name: "Excel formula with quotes", input: `="hello"`, want: "hello"},
		{name: "Excel formula number as text", input: `="12345"`, want: "12345"},
		{name: "excel formula with whitespace", input: `  ="test"  `, want: "test"},
		{name: "equals with quoted number", input: `="0"`, want: "0"},
		{name: "bare formula kept", input: "=SUM(A1)", want: "=SUM(A1)"},
		{name: "plain quotes kept", input: `"hello"`, want: `"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanCell(tt.input)
			if got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"leads", `"leads"`},
		{"start_time", `"start_time"`},
		{`bad"name`, `"bad""name"`},
	}
	for _, tt := range tests {
		if got := QuoteIdentifier(tt.input); got != tt.want {
			t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
