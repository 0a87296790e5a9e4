package core

import (
	"sync"
	"time"
)

// ImportResult is the auditable summary of one import.
// SuccessCount + UpdateCount + DuplicateCount + ErrorCount equals the number
// of data rows processed. A fatal input error leaves every count at zero.
type ImportResult struct {
	ImportID       string        `json:"importId,omitempty"`
	Entity         string        `json:"entity"`
	FileName       string        `json:"fileName,omitempty"`
	TotalRows      int           `json:"totalRows"`
	SuccessCount   int           `json:"successCount"`
	UpdateCount    int           `json:"updateCount"`
	DuplicateCount int           `json:"duplicateCount"`
	ErrorCount     int           `json:"errorCount"`
	Errors         []RowError    `json:"errors"`
	Warnings       []RowWarning  `json:"warnings"`
	Fatal          string        `json:"fatal,omitempty"`
	Cancelled      bool          `json:"cancelled"`
	Duration       time.Duration `json:"duration"`
}

// Processed returns the number of data rows that reached an outcome.
func (r *ImportResult) Processed() int {
	return r.SuccessCount + r.UpdateCount + r.DuplicateCount + r.ErrorCount
}

// ResultAggregator accumulates per-row outcomes into an ImportResult.
// It is safe for concurrent use so progress can be read mid-run.
type ResultAggregator struct {
	mu     sync.Mutex
	result ImportResult
}

// NewResultAggregator starts an empty result for entity with total data rows.
func NewResultAggregator(entity string, total int) *ResultAggregator {
	return &ResultAggregator{result: ImportResult{
		Entity:    entity,
		TotalRows: total,
		Errors:    []RowError{},
		Warnings:  []RowWarning{},
	}}
}

func (a *ResultAggregator) Inserted() {
	a.mu.Lock()
	a.result.SuccessCount++
	a.mu.Unlock()
}

func (a *ResultAggregator) Updated() {
	a.mu.Lock()
	a.result.UpdateCount++
	a.mu.Unlock()
}

func (a *ResultAggregator) Duplicate() {
	a.mu.Lock()
	a.result.DuplicateCount++
	a.mu.Unlock()
}

// Failed records a row error. Each failing row is counted exactly once.
func (a *ResultAggregator) Failed(e RowError) {
	a.mu.Lock()
	a.result.ErrorCount++
	a.result.Errors = append(a.result.Errors, e)
	a.mu.Unlock()
}

// Warn attaches a warning to a line without affecting counts.
func (a *ResultAggregator) Warn(line int, message string) {
	a.mu.Lock()
	a.result.Warnings = append(a.result.Warnings, RowWarning{Row: line, Message: message})
	a.mu.Unlock()
}

// Fatal marks the import as rejected before any row was processed.
func (a *ResultAggregator) Fatal(message string) {
	a.mu.Lock()
	a.result.Fatal = message
	a.mu.Unlock()
}

// Cancel marks the import as cancelled.
func (a *ResultAggregator) Cancel() {
	a.mu.Lock()
	a.result.Cancelled = true
	a.mu.Unlock()
}

// Processed returns the number of rows with an outcome so far.
func (a *ResultAggregator) Processed() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result.Processed()
}

// Result returns a copy of the accumulated result.
func (a *ResultAggregator) Result() *ImportResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := a.result
	r.Errors = append([]RowError(nil), a.result.Errors...)
	r.Warnings = append([]RowWarning(nil), a.result.Warnings...)
	if r.Errors == nil {
		r.Errors = []RowError{}
	}
	if r.Warnings == nil {
		r.Warnings = []RowWarning{}
	}
	return &r
}
