package core

// headers.go maps loosely spelled CSV headers onto canonical schema fields.
//
// Each header is tried against the schema in three tiers, first match wins:
//
//  1. exact match on the canonical name or label
//  2. case-insensitive match (Unicode case folding)
//  3. synonym match: the normalized header equals a synonym, and failing
//     that, contains one
//
// A field claimed by an earlier header is never claimed twice.

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// fold applies Unicode case folding. Casers are stateful, so one is made per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

// HeaderMapping is the result of matching a header row against a schema.
type HeaderMapping struct {
	Columns  map[string]int // Canonical field name -> column index
	Warnings []string
}

// Has reports whether the field was mapped to a column.
func (m *HeaderMapping) Has(field string) bool {
	_, ok := m.Columns[field]
	return ok
}

// Row extracts the mapped values of a raw record.
// Ragged rows shorter than the header yield empty values.
func (m *HeaderMapping) Row(line int, record []string) ImportRow {
	values := make(map[string]string, len(m.Columns))
	for field, idx := range m.Columns {
		if idx < len(record) {
			values[field] = record[idx]
		} else {
			values[field] = ""
		}
	}
	return ImportRow{Line: line, Values: values}
}

// MapHeaders matches headers to schema fields. Unknown headers produce a
// warning. A natural-key field left unmapped is a FatalInputError.
func MapHeaders(headers []string, schema *Schema) (*HeaderMapping, error) {
	mapping := &HeaderMapping{Columns: make(map[string]int, len(headers))}
	claimed := make(map[string]bool, len(schema.Fields))

	for idx, raw := range headers {
		header := strings.TrimSpace(raw)
		if header == "" {
			continue
		}
		name, ok := matchField(header, schema.Fields, claimed)
		if !ok {
			mapping.Warnings = append(mapping.Warnings, fmt.Sprintf("Unknown column %q will be ignored", header))
			continue
		}
		claimed[name] = true
		mapping.Columns[name] = idx
	}

	for _, key := range schema.NaturalKey {
		if !claimed[key] {
			spec, _ := schema.Field(key)
			return nil, &FatalInputError{
				Message: fmt.Sprintf("missing required column %q", spec.DisplayName()),
			}
		}
	}

	return mapping, nil
}

// matchField runs the three matching tiers for one header.
func matchField(header string, fields []FieldSpec, claimed map[string]bool) (string, bool) {
	for _, f := range fields {
		if claimed[f.Name] {
			continue
		}
		if header == f.Name || header == f.Label {
			return f.Name, true
		}
	}

	folded := fold(header)
	for _, f := range fields {
		if claimed[f.Name] {
			continue
		}
		if folded == fold(f.Name) || (f.Label != "" && folded == fold(f.Label)) {
			return f.Name, true
		}
	}

	normalized := normalizeHeader(header)
	if normalized == "" {
		return "", false
	}
	for _, f := range fields {
		if claimed[f.Name] {
			continue
		}
		if normalized == normalizeHeader(f.Name) || normalized == normalizeHeader(f.Label) {
			return f.Name, true
		}
		for _, syn := range f.Synonyms {
			if normalized == normalizeHeader(syn) {
				return f.Name, true
			}
		}
	}
	for _, f := range fields {
		if claimed[f.Name] {
			continue
		}
		for _, syn := range f.Synonyms {
			if s := normalizeHeader(syn); s != "" && strings.Contains(normalized, s) {
				return f.Name, true
			}
		}
	}

	return "", false
}

// normalizeHeader folds case and drops everything except letters and digits.
// "Lead_Name " -> "leadname"
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range fold(CleanCell(h)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
