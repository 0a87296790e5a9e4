// Package core provides the business logic for CSV import and export of CRM entities.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"strings"
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldDateTime
	FieldNumber
	FieldIDRef
	FieldJSON
)

var fieldTypeNames = map[FieldType]string{
	FieldText:     "text",
	FieldEnum:     "enum",
	FieldDate:     "date",
	FieldDateTime: "datetime",
	FieldNumber:   "number",
	FieldIDRef:    "id-reference",
	FieldJSON:     "json-blob",
}

func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the type by name in JSON responses.
func (t FieldType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FieldSpec defines a single canonical field of an entity.
type FieldSpec struct {
	Name       string    // Canonical field name, also the export header
	Label      string    // Human label, accepted as an exact header match
	DBColumn   string    // Database column name (derived from Name if empty)
	Type       FieldType // Expected data type
	Required   bool      // Value must be non-blank after trimming
	EnumValues []string  // Canonical spellings for FieldEnum
	Synonyms   []string  // Alternate header spellings, matched after normalization
}

// Column returns the database column for the field.
func (f FieldSpec) Column() string {
	if f.DBColumn != "" {
		return f.DBColumn
	}
	return toDBColumnName(f.Name)
}

// DisplayName returns the label if set, otherwise the canonical name.
func (f FieldSpec) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// ChildSpec describes child records embedded in a parent's json-blob column.
type ChildSpec struct {
	Field      string      // Parent field holding the JSON array
	Entity     string      // Child entity name
	Table      string      // Child table (defaults to Entity)
	ForeignKey string      // Child column referencing the parent id
	Fields     []FieldSpec // Child fields, in export order
}

// TableName returns the child table name.
func (c *ChildSpec) TableName() string {
	if c.Table != "" {
		return c.Table
	}
	return c.Entity
}

// Schema is the immutable field definition of one entity, shared by import and export.
type Schema struct {
	Entity     string      // Unique identifier: "leads"
	Label      string      // Display name: "Leads"
	Table      string      // Backing table (defaults to Entity)
	IDField    string      // Canonical name of the id field
	Fields     []FieldSpec // Ordered canonical fields, including the id field
	NaturalKey []string    // Fields forming the duplicate-detection key
	Child      *ChildSpec  // Optional embedded child records
}

// TableName returns the backing table name.
func (s *Schema) TableName() string {
	if s.Table != "" {
		return s.Table
	}
	return s.Entity
}

// Field returns the spec for a canonical field name.
func (s *Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Columns returns the canonical field names in schema order.
func (s *Schema) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
	}
	return cols
}

// DataFields returns every field except the id field and the child column.
// These are the fields persisted as columns of the entity table.
func (s *Schema) DataFields() []FieldSpec {
	fields := make([]FieldSpec, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == s.IDField || f.Type == FieldJSON {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// IsNaturalKey reports whether the field is part of the natural key.
func (s *Schema) IsNaturalKey(name string) bool {
	for _, k := range s.NaturalKey {
		if k == name {
			return true
		}
	}
	return false
}

// EntityInfo contains display information about a registered entity.
type EntityInfo struct {
	Entity     string   `json:"entity"`
	Label      string   `json:"label"`
	Columns    []string `json:"columns"`
	NaturalKey []string `json:"naturalKey"`
	Child      string   `json:"child,omitempty"`
}

// Info returns the display information for the schema.
func (s *Schema) Info() EntityInfo {
	info := EntityInfo{
		Entity:     s.Entity,
		Label:      s.Label,
		Columns:    s.Columns(),
		NaturalKey: s.NaturalKey,
	}
	if s.Child != nil {
		info.Child = s.Child.Entity
	}
	return info
}

// ImportRow is one parsed data row keyed by canonical field name.
type ImportRow struct {
	Line   int               // 1-based source line; the header is line 1
	Values map[string]string // Raw cell values for mapped fields
}

// Record is a normalized row ready for the store.
type Record struct {
	ID          string
	Fields      map[string]string
	Children    []ChildRecord
	ChildrenSet bool // Child column was mapped and parsed; replace children on update
}

// ChildRecord is one embedded child normalized with the child schema.
type ChildRecord struct {
	Fields map[string]string
}

// StoredRecord is a record as read back from the store.
type StoredRecord struct {
	ID     string
	Fields map[string]string
}

// RecordStore is the persistence boundary. Each call is independently transactional.
// Lookups return ErrNotFound when nothing matches. Write failures caused by
// missing privileges wrap ErrPermissionDenied.
type RecordStore interface {
	FindByID(ctx context.Context, entity, id string) (*StoredRecord, error)
	FindByNaturalKey(ctx context.Context, entity string, key map[string]string) (*StoredRecord, error)
	Insert(ctx context.Context, entity string, fields map[string]string) (string, error)
	Update(ctx context.Context, entity, id string, fields map[string]string) error
	DeleteChildren(ctx context.Context, child, parentID string) error
	InsertChildren(ctx context.Context, child, parentID string, rows []map[string]string) error
	List(ctx context.Context, entity string) ([]StoredRecord, error)
	ListChildren(ctx context.Context, child string, parentIDs []string) (map[string][]map[string]string, error)
}

// PrincipalDirectory resolves free text (display name, full name or email) to a principal id.
type PrincipalDirectory interface {
	Resolve(ctx context.Context, text string) (id string, ok bool, err error)
}

// ImportPhase indicates the current stage of import processing.
type ImportPhase string

const (
	PhaseStarting    ImportPhase = "starting"
	PhaseReconciling ImportPhase = "reconciling"
	PhaseComplete    ImportPhase = "complete"
	PhaseFailed      ImportPhase = "failed"
	PhaseCancelled   ImportPhase = "cancelled"
)

// ImportProgress represents the current state of an import.
type ImportProgress struct {
	ImportID  string      `json:"importId"`
	Entity    string      `json:"entity"`
	FileName  string      `json:"fileName,omitempty"`
	Phase     ImportPhase `json:"phase"`
	Total     int         `json:"total"`
	Processed int         `json:"processed"`
	Bytes     int64       `json:"bytes"` // Raw file size as received
	Error     string      `json:"error,omitempty"`
}

// Percent returns the progress as a percentage (0-100).
func (p ImportProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return (p.Processed * 100) / p.Total
}

// ProgressCallback is called after each reconciled batch.
type ProgressCallback func(processed, total int)

// toDBColumnName converts a field name to a database column name.
// "Start Time" -> "start_time"
func toDBColumnName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// QuoteIdentifier quotes a SQL identifier to prevent injection.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
