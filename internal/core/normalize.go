package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Normalizer converts raw import rows into canonical records for one schema.
type Normalizer struct {
	schema           *Schema
	directory        PrincipalDirectory
	defaultPrincipal string
}

// NewNormalizer creates a Normalizer. directory may be nil, in which case
// only well-formed ids are accepted for id-reference fields.
func NewNormalizer(schema *Schema, directory PrincipalDirectory, defaultPrincipal string) *Normalizer {
	return &Normalizer{
		schema:           schema,
		directory:        directory,
		defaultPrincipal: defaultPrincipal,
	}
}

// Normalize validates and converts one row. A blank natural-key or required
// field is returned as a *RowError; every other problem becomes a warning and
// the offending field is left empty or absent.
func (n *Normalizer) Normalize(ctx context.Context, row ImportRow) (*Record, []string, error) {
	rec := &Record{Fields: make(map[string]string, len(row.Values))}
	var warnings []string

	for _, spec := range n.schema.Fields {
		raw, mapped := row.Values[spec.Name]
		if !mapped {
			continue
		}
		raw = CleanCell(raw)

		if spec.Name == n.schema.IDField {
			rec.ID = raw
			continue
		}

		if raw == "" && (spec.Required || n.schema.IsNaturalKey(spec.Name)) {
			return nil, nil, &RowError{
				Row:     row.Line,
				Message: fmt.Sprintf("required field %q is empty", spec.DisplayName()),
				Kind:    KindValidation,
			}
		}

		if spec.Type == FieldJSON {
			if n.schema.Child == nil || n.schema.Child.Field != spec.Name {
				rec.Fields[spec.Name] = raw
				continue
			}
			children, childWarnings, err := n.normalizeChildren(ctx, raw)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("%s: %v; existing %s left unchanged", spec.DisplayName(), err, n.schema.Child.Entity))
				continue
			}
			warnings = append(warnings, childWarnings...)
			rec.Children = children
			rec.ChildrenSet = true
			continue
		}

		value, present, warn, err := n.normalizeValue(ctx, spec, raw)
		if err != nil {
			return nil, nil, &RowError{Row: row.Line, Message: err.Error(), Kind: KindStore}
		}
		if warn != "" {
			warnings = append(warnings, warn)
		}
		if present {
			rec.Fields[spec.Name] = value
		}
	}

	for _, spec := range n.schema.Fields {
		if _, mapped := row.Values[spec.Name]; !mapped || spec.Name == n.schema.IDField {
			continue
		}
		if (spec.Required || n.schema.IsNaturalKey(spec.Name)) && rec.Fields[spec.Name] == "" && spec.Type != FieldJSON {
			return nil, nil, &RowError{
				Row:     row.Line,
				Message: fmt.Sprintf("required field %q has an invalid value %q", spec.DisplayName(), CleanCell(row.Values[spec.Name])),
				Kind:    KindValidation,
			}
		}
	}

	return rec, warnings, nil
}

// InsertDefaults returns fields with the default principal filled into every
// id-reference field the row did not supply. Updates never use it, so an
// unmapped owner column leaves the stored owner alone.
func (n *Normalizer) InsertDefaults(fields map[string]string) map[string]string {
	if n.defaultPrincipal == "" {
		return fields
	}
	out := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	for _, spec := range n.schema.Fields {
		if spec.Type != FieldIDRef || spec.Name == n.schema.IDField {
			continue
		}
		if _, ok := out[spec.Name]; !ok {
			out[spec.Name] = n.defaultPrincipal
		}
	}
	return out
}

// normalizeValue converts a single cell. present is false when the field must
// be left out of the record entirely (an unparseable date).
func (n *Normalizer) normalizeValue(ctx context.Context, spec FieldSpec, raw string) (value string, present bool, warning string, err error) {
	if raw == "" {
		if spec.Type == FieldIDRef && n.defaultPrincipal != "" {
			return n.defaultPrincipal, true, "", nil
		}
		return "", true, "", nil
	}

	switch spec.Type {
	case FieldDate:
		v, ok := NormalizeDate(raw)
		if !ok {
			return "", false, fmt.Sprintf("invalid date %q for %s", raw, spec.DisplayName()), nil
		}
		return v, true, "", nil

	case FieldDateTime:
		v, ok := NormalizeDateTime(raw)
		if !ok {
			return "", false, fmt.Sprintf("invalid date %q for %s", raw, spec.DisplayName()), nil
		}
		return v, true, "", nil

	case FieldEnum:
		v := NormalizeEnum(raw, spec.EnumValues)
		if v == "" {
			return "", true, fmt.Sprintf("invalid enum %q for %s", raw, spec.DisplayName()), nil
		}
		return v, true, "", nil

	case FieldNumber:
		v, ok := NormalizeNumber(raw)
		if !ok {
			return "", true, fmt.Sprintf("invalid number %q for %s", raw, spec.DisplayName()), nil
		}
		return v, true, "", nil

	case FieldIDRef:
		return n.resolvePrincipal(ctx, spec, raw)

	default:
		return raw, true, "", nil
	}
}

// resolvePrincipal accepts a well-formed id as is, otherwise looks the text up
// in the directory and falls back to the default principal.
func (n *Normalizer) resolvePrincipal(ctx context.Context, spec FieldSpec, raw string) (string, bool, string, error) {
	if id, err := uuid.Parse(raw); err == nil {
		return id.String(), true, "", nil
	}
	if n.directory != nil {
		id, ok, err := n.directory.Resolve(ctx, raw)
		if err != nil {
			return "", false, "", fmt.Errorf("resolve %s %q: %w", spec.DisplayName(), raw, err)
		}
		if ok {
			return id, true, "", nil
		}
	}
	if n.defaultPrincipal != "" {
		return n.defaultPrincipal, true, fmt.Sprintf("unknown %s %q, using default", spec.DisplayName(), raw), nil
	}
	return "", false, fmt.Sprintf("unknown %s %q", spec.DisplayName(), raw), nil
}

// normalizeChildren parses and normalizes the json-blob child column.
// Children missing a required value are dropped with a warning.
func (n *Normalizer) normalizeChildren(ctx context.Context, cell string) ([]ChildRecord, []string, error) {
	child := n.schema.Child
	rows, err := decodeChildren(cell, child)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	children := make([]ChildRecord, 0, len(rows))
next:
	for i, row := range rows {
		fields := make(map[string]string, len(child.Fields))
		for _, spec := range child.Fields {
			raw, ok := row[spec.Name]
			if !ok {
				continue
			}
			raw = CleanCell(raw)
			if raw == "" && spec.Required {
				warnings = append(warnings, fmt.Sprintf("%s #%d skipped: %s is empty", child.Entity, i+1, spec.DisplayName()))
				continue next
			}
			value, present, warn, err := n.normalizeValue(ctx, spec, raw)
			if err != nil {
				return nil, nil, err
			}
			if warn != "" {
				warnings = append(warnings, fmt.Sprintf("%s #%d: %s", child.Entity, i+1, warn))
			}
			if present {
				fields[spec.Name] = value
			}
		}
		for _, spec := range child.Fields {
			if _, ok := fields[spec.Name]; !ok && spec.Required {
				warnings = append(warnings, fmt.Sprintf("%s #%d skipped: %s is missing", child.Entity, i+1, spec.DisplayName()))
				continue next
			}
		}
		children = append(children, ChildRecord{Fields: fields})
	}
	return children, warnings, nil
}

// NaturalKeyOf extracts the record's natural-key values.
func (s *Schema) NaturalKeyOf(rec *Record) map[string]string {
	key := make(map[string]string, len(s.NaturalKey))
	for _, k := range s.NaturalKey {
		key[k] = rec.Fields[k]
	}
	return key
}

// naturalKeyString joins natural-key values for locking and logging.
func (s *Schema) naturalKeyString(rec *Record) string {
	parts := make([]string, len(s.NaturalKey))
	for i, k := range s.NaturalKey {
		parts[i] = rec.Fields[k]
	}
	return strings.Join(parts, "\x1f")
}
