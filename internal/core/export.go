package core

import (
	"context"
	"fmt"
	"time"
)

// ExportFile is a rendered CSV export.
type ExportFile struct {
	FileName    string
	Content     string
	RecordCount int
}

// Exporter renders an entity's full record set as CSV.
type Exporter struct {
	store RecordStore
	now   func() time.Time
}

// NewExporter creates an Exporter reading from store.
func NewExporter(store RecordStore) *Exporter {
	return &Exporter{store: store, now: time.Now}
}

// Export emits every record with the full canonical header in schema order.
// Children are read with one bulk query for all parents.
func (e *Exporter) Export(ctx context.Context, schema *Schema) (*ExportFile, error) {
	records, err := e.store.List(ctx, schema.Entity)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", schema.Entity, err)
	}

	var children map[string][]map[string]string
	if schema.Child != nil && len(records) > 0 {
		ids := make([]string, len(records))
		for i, r := range records {
			ids[i] = r.ID
		}
		children, err = e.store.ListChildren(ctx, schema.Child.Entity, ids)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", schema.Child.Entity, err)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row, err := exportRow(schema, rec, children[rec.ID])
		if err != nil {
			return nil, fmt.Errorf("export %s %s: %w", schema.Entity, rec.ID, err)
		}
		rows = append(rows, row)
	}

	return &ExportFile{
		FileName:    ExportFileName(schema.Entity, e.now()),
		Content:     Serialize(schema.Columns(), rows),
		RecordCount: len(records),
	}, nil
}

func exportRow(schema *Schema, rec StoredRecord, children []map[string]string) ([]string, error) {
	row := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		switch {
		case f.Name == schema.IDField:
			row[i] = rec.ID
		case schema.Child != nil && f.Name == schema.Child.Field:
			cell, err := EncodeChildren(children, schema.Child)
			if err != nil {
				return nil, err
			}
			row[i] = cell
		default:
			row[i] = FormatExport(f, rec.Fields[f.Name])
		}
	}
	return row, nil
}

// ExportFileName returns "<entity>_export_<YYYY-MM-DD>.csv".
func ExportFileName(entity string, now time.Time) string {
	return fmt.Sprintf("%s_export_%s.csv", entity, now.Format(DateLayout))
}

// Template returns a header-only CSV for the entity.
func Template(schema *Schema) string {
	return Serialize(schema.Columns(), nil)
}
