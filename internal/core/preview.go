package core

import (
	"context"
	"io"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// PreviewSummary contains the counts an import of the file would produce.
type PreviewSummary struct {
	TotalRows       int `json:"totalRows"`
	NewRows         int `json:"newRows"`
	UpdateRows      int `json:"updateRows"`
	ExistingRows    int `json:"existingRows"`
	DuplicateInFile int `json:"duplicateInFile"`
	ErrorRows       int `json:"errorRows"`
	WarningCount    int `json:"warningCount"`
}

// RowPreview represents a single row for preview display.
type RowPreview struct {
	LineNumber int               `json:"lineNumber"`
	RowKey     string            `json:"rowKey"`
	Values     map[string]string `json:"values"`
}

// UpdateDiff represents a before/after diff for a row that will be updated.
type UpdateDiff struct {
	LineNumber int               `json:"lineNumber"`
	RecordID   string            `json:"recordId"`
	Current    map[string]string `json:"current"`
	Incoming   map[string]string `json:"incoming"`
	Changed    []string          `json:"changed"`
}

// DuplicatePreview represents natural keys that appear multiple times in the file.
type DuplicatePreview struct {
	RowKey      string `json:"rowKey"`
	LineNumbers []int  `json:"lineNumbers"`
}

// PreviewResponse is the complete result of a read-only import analysis.
type PreviewResponse struct {
	Entity           string             `json:"entity"`
	Summary          PreviewSummary     `json:"summary"`
	HeaderWarnings   []string           `json:"headerWarnings"`
	NewRowSamples    []RowPreview       `json:"newRowSamples"`
	UpdateDiffs      []UpdateDiff       `json:"updateDiffs"`
	ErrorSamples     []RowError         `json:"errorSamples"`
	WarningSamples   []RowWarning       `json:"warningSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// Sample limits
const (
	maxNewRowSamples    = 10
	maxUpdateDiffs      = 10
	maxErrorSamples     = 20
	maxWarningSamples   = 20
	maxDuplicateSamples = 10
)

type previewRow struct {
	line     int
	rec      *Record
	match    Match
	matchErr error
}

// Preview analyzes a CSV file the way Import would, without writing anything.
// Each row is classified as new, update, existing (natural key already
// stored) or a duplicate of an earlier row in the same file.
func (s *Service) Preview(ctx context.Context, entity string, r io.Reader, opts ImportOptions) (*PreviewResponse, error) {
	started := time.Now()

	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}

	table, err := ParseReader(r)
	if err != nil {
		return nil, err
	}
	if table.Len() == 0 {
		return nil, &FatalInputError{Message: "file has no data rows", Err: ErrMalformedInput}
	}

	mapping, err := MapHeaders(table.Headers, schema)
	if err != nil {
		return nil, err
	}

	resp := &PreviewResponse{
		Entity:           entity,
		Summary:          PreviewSummary{TotalRows: table.Len()},
		HeaderWarnings:   append([]string{}, mapping.Warnings...),
		NewRowSamples:    []RowPreview{},
		UpdateDiffs:      []UpdateDiff{},
		ErrorSamples:     []RowError{},
		WarningSamples:   []RowWarning{},
		DuplicateSamples: []DuplicatePreview{},
	}

	owner := opts.DefaultOwner
	if owner == "" {
		owner = s.defaultOwner
	}
	normalizer := NewNormalizer(schema, s.runDirectory(), owner)

	rows := make([]previewRow, 0, table.Len())
	for i, raw := range table.Rows {
		line := table.Lines[i]
		rec, warnings, err := normalizer.Normalize(ctx, mapping.Row(line, raw))
		for _, w := range warnings {
			resp.Summary.WarningCount++
			if len(resp.WarningSamples) < maxWarningSamples {
				resp.WarningSamples = append(resp.WarningSamples, RowWarning{Row: line, Message: w})
			}
		}
		if err != nil {
			resp.addError(*toRowError(line, err))
			continue
		}
		rows = append(rows, previewRow{line: line, rec: rec})
	}

	matcher := NewDedupMatcher(schema, s.store)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.lookupWorkers)
	for i := range rows {
		row := &rows[i]
		g.Go(func() error {
			row.match, row.matchErr = matcher.Find(gctx, row.rec)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]int)
	var dupKeys []string
	dupLines := make(map[string][]int)

	for _, row := range rows {
		if row.matchErr != nil {
			resp.addError(*newStoreRowError(row.line, row.matchErr))
			continue
		}

		key := schema.naturalKeyString(row.rec)
		switch row.match.Kind {
		case MatchID:
			resp.Summary.UpdateRows++
			if len(resp.UpdateDiffs) < maxUpdateDiffs {
				diff, err := s.updateDiff(ctx, schema, row)
				if err != nil {
					return nil, err
				}
				resp.UpdateDiffs = append(resp.UpdateDiffs, diff)
			}

		case MatchNaturalKey:
			resp.Summary.ExistingRows++

		default:
			if first, ok := seen[key]; ok {
				resp.Summary.DuplicateInFile++
				if _, tracked := dupLines[key]; !tracked {
					dupKeys = append(dupKeys, key)
					dupLines[key] = []int{first}
				}
				dupLines[key] = append(dupLines[key], row.line)
				continue
			}
			seen[key] = row.line
			resp.Summary.NewRows++
			if len(resp.NewRowSamples) < maxNewRowSamples {
				resp.NewRowSamples = append(resp.NewRowSamples, RowPreview{
					LineNumber: row.line,
					RowKey:     displayKey(key),
					Values:     previewValues(schema, row.rec.Fields),
				})
			}
		}
	}

	for _, key := range dupKeys {
		if len(resp.DuplicateSamples) == maxDuplicateSamples {
			break
		}
		resp.DuplicateSamples = append(resp.DuplicateSamples, DuplicatePreview{
			RowKey:      displayKey(key),
			LineNumbers: dupLines[key],
		})
	}

	resp.ProcessingTimeMs = time.Since(started).Milliseconds()
	return resp, nil
}

func (p *PreviewResponse) addError(e RowError) {
	p.Summary.ErrorRows++
	if len(p.ErrorSamples) < maxErrorSamples {
		p.ErrorSamples = append(p.ErrorSamples, e)
	}
}

// updateDiff compares the stored record with the incoming fields. Only
// fields present in the file can change.
func (s *Service) updateDiff(ctx context.Context, schema *Schema, row previewRow) (UpdateDiff, error) {
	current, err := s.store.FindByID(ctx, schema.Entity, row.match.RecordID)
	if err != nil {
		return UpdateDiff{}, err
	}

	diff := UpdateDiff{
		LineNumber: row.line,
		RecordID:   row.match.RecordID,
		Current:    previewValues(schema, current.Fields),
		Incoming:   previewValues(schema, row.rec.Fields),
		Changed:    []string{},
	}
	for _, f := range schema.DataFields() {
		incoming, ok := row.rec.Fields[f.Name]
		if ok && incoming != current.Fields[f.Name] {
			diff.Changed = append(diff.Changed, f.Name)
		}
	}
	return diff, nil
}

// previewValues formats stored values the way an export would show them.
func previewValues(schema *Schema, fields map[string]string) map[string]string {
	values := make(map[string]string, len(fields))
	for _, f := range schema.DataFields() {
		if v, ok := fields[f.Name]; ok {
			values[f.Name] = FormatExport(f, v)
		}
	}
	return values
}

func displayKey(key string) string {
	return strings.ReplaceAll(key, "\x1f", " | ")
}
