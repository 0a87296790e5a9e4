package core

// codec.go reads and writes the CSV dialect used for import and export.
//
// Parsing is tolerant: records split on CRLF or LF, ragged rows are allowed,
// blank lines are dropped and every row remembers its source line so errors
// can point at the right place in the user's file. Serializing is strict:
// only values containing a comma, quote, CR or LF are quoted, records are
// separated by "\n".

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a parsed CSV file.
type Table struct {
	Headers    []string
	HeaderLine int
	Rows       [][]string
	Lines      []int // Source line of each row in Rows
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Parse splits CSV text into a header and data rows.
// Empty input yields ErrMalformedInput. A header with no data rows is not an
// error here; the reconciler decides whether that is fatal.
func Parse(text string) (*Table, error) {
	return parseReader(strings.NewReader(text))
}

// ParseReader parses CSV from r after stripping any byte order mark and
// replacing invalid UTF-8.
func ParseReader(r io.Reader) (*Table, error) {
	return parseReader(NewDecodingReader(r))
}

func parseReader(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	table := &Table{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &FatalInputError{Message: "file could not be parsed", Err: fmt.Errorf("%w: %v", ErrMalformedInput, err)}
		}
		if isEmptyRow(record) {
			continue
		}

		line, _ := cr.FieldPos(0)
		if table.Headers == nil {
			table.Headers = record
			table.HeaderLine = line
			continue
		}
		table.Rows = append(table.Rows, record)
		table.Lines = append(table.Lines, line)
	}

	if table.Headers == nil {
		return nil, &FatalInputError{Message: "empty file", Err: ErrMalformedInput}
	}
	return table, nil
}

// Serialize renders a header row and data rows as CSV text.
func Serialize(headers []string, rows [][]string) string {
	var b strings.Builder
	writeRecord(&b, headers)
	for _, row := range rows {
		writeRecord(&b, row)
	}
	return b.String()
}

func writeRecord(b *strings.Builder, record []string) {
	for i, field := range record {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteField(field))
	}
	b.WriteByte('\n')
}

// quoteField quotes a value only when it contains a delimiter, quote or line break.
func quoteField(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
