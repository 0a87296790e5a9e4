package core

// reconcile.go decides, row by row, whether an import inserts, updates or
// skips a record, and applies that decision to the store.
//
// Rows are processed in batches. Within a batch:
//
//  1. every row is normalized and validated
//  2. duplicate lookups run in parallel (read-only, bounded by LookupWorkers)
//  3. writes are issued one at a time in row order, each under a KeyLocker
//     lock on the row's id and natural key
//
// A prefetched lookup can be stale by the time its row is written: an earlier
// row in the same run may have inserted the same natural key or modified the
// matched record. Those rows are looked up again inside the lock, which makes
// the outcome independent of batch size.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBatchSize is the number of rows reconciled per batch.
	DefaultBatchSize = 20

	// DefaultLookupWorkers bounds parallel duplicate lookups within a batch.
	DefaultLookupWorkers = 4
)

// ReconcileOptions tunes a Reconciler.
type ReconcileOptions struct {
	BatchSize     int
	LookupWorkers int
	ImportID      string
	FileName      string
	OnProgress    ProgressCallback
	Logger        *slog.Logger
}

// Reconciler runs one import of a parsed table against the store.
type Reconciler struct {
	schema     *Schema
	store      RecordStore
	normalizer *Normalizer
	matcher    *DedupMatcher
	locks      *KeyLocker
	audit      AuditLogger
	logger     *slog.Logger
	opts       ReconcileOptions
}

// NewReconciler creates a Reconciler. locks should be shared by every run
// against the same store; nil gets a private locker. audit may be nil.
func NewReconciler(schema *Schema, store RecordStore, normalizer *Normalizer, locks *KeyLocker, audit AuditLogger, opts ReconcileOptions) *Reconciler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.LookupWorkers <= 0 {
		opts.LookupWorkers = DefaultLookupWorkers
	}
	if locks == nil {
		locks = NewKeyLocker(0)
	}
	if audit == nil {
		audit = NewSlogAuditLogger(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Reconciler{
		schema:     schema,
		store:      store,
		normalizer: normalizer,
		matcher:    NewDedupMatcher(schema, store),
		locks:      locks,
		audit:      audit,
		logger:     logger.With("import_id", opts.ImportID, "entity", schema.Entity),
		opts:       opts,
	}
}

// slot carries one row through a batch.
type slot struct {
	line     int
	rec      *Record
	match    Match
	matchErr error
	done     bool
}

// Run reconciles every data row of table. Fatal input problems return a
// *FatalInputError with zero rows processed. Cancellation is checked between
// batches and returns ErrCancelled with Cancelled set on the result.
func (r *Reconciler) Run(ctx context.Context, table *Table) (*ImportResult, error) {
	started := time.Now()
	agg := NewResultAggregator(r.schema.Entity, table.Len())
	finish := func() *ImportResult {
		res := agg.Result()
		res.ImportID = r.opts.ImportID
		res.FileName = r.opts.FileName
		res.Duration = time.Since(started)
		return res
	}

	if table.Len() == 0 {
		err := &FatalInputError{Message: "file has no data rows", Err: ErrMalformedInput}
		agg.Fatal(err.Error())
		return finish(), err
	}

	mapping, err := MapHeaders(table.Headers, r.schema)
	if err != nil {
		agg.Fatal(err.Error())
		return finish(), err
	}
	for _, w := range mapping.Warnings {
		r.warn(agg, table.HeaderLine, w)
	}

	written := make(map[string]bool)
	total := table.Len()
	for start := 0; start < total; start += r.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			agg.Cancel()
			r.logger.Info("import cancelled", "processed", agg.Processed(), "total", total)
			return finish(), fmt.Errorf("%w: %v", ErrCancelled, err)
		}

		end := min(start+r.opts.BatchSize, total)
		// A started batch runs to completion so every row in it gets an outcome.
		r.runBatch(context.WithoutCancel(ctx), table, mapping, start, end, agg, written)

		if r.opts.OnProgress != nil {
			r.opts.OnProgress(end, total)
		}
	}

	res := finish()
	r.logger.Info("import reconciled",
		"inserted", res.SuccessCount,
		"updated", res.UpdateCount,
		"duplicates", res.DuplicateCount,
		"errors", res.ErrorCount,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (r *Reconciler) runBatch(ctx context.Context, table *Table, mapping *HeaderMapping, start, end int, agg *ResultAggregator, written map[string]bool) {
	slots := make([]slot, end-start)

	for i := range slots {
		line := table.Lines[start+i]
		slots[i].line = line

		rec, warnings, err := r.normalizer.Normalize(ctx, mapping.Row(line, table.Rows[start+i]))
		for _, w := range warnings {
			r.warn(agg, line, w)
		}
		if err != nil {
			r.fail(ctx, agg, nil, toRowError(line, err))
			slots[i].done = true
			continue
		}
		slots[i].rec = rec
	}

	g := new(errgroup.Group)
	g.SetLimit(r.opts.LookupWorkers)
	for i := range slots {
		s := &slots[i]
		if s.done {
			continue
		}
		g.Go(func() error {
			s.match, s.matchErr = r.matcher.Find(ctx, s.rec)
			return nil
		})
	}
	_ = g.Wait()

	for i := range slots {
		if slots[i].done {
			continue
		}
		r.write(ctx, &slots[i], agg, written)
	}
}

// write applies one row's decision under the key lock.
func (r *Reconciler) write(ctx context.Context, s *slot, agg *ResultAggregator, written map[string]bool) {
	unlock := r.locks.Lock(r.lockKeys(s)...)
	defer unlock()

	match := s.match
	if s.matchErr != nil || match.Kind == MatchNone || written[match.RecordID] {
		m, err := r.matcher.Find(ctx, s.rec)
		if err != nil {
			r.fail(ctx, agg, s.rec, newStoreRowError(s.line, err))
			return
		}
		match = m
	}

	entity := r.schema.Entity
	switch match.Kind {
	case MatchID:
		if err := r.store.Update(ctx, entity, match.RecordID, s.rec.Fields); err != nil {
			r.fail(ctx, agg, s.rec, newStoreRowError(s.line, err))
			return
		}
		written[match.RecordID] = true
		if s.rec.ChildrenSet {
			r.replaceChildren(ctx, agg, s.line, match.RecordID, s.rec.Children)
		}
		agg.Updated()

	case MatchNaturalKey:
		agg.Duplicate()

	default:
		id, err := r.store.Insert(ctx, entity, r.normalizer.InsertDefaults(s.rec.Fields))
		if err != nil {
			r.fail(ctx, agg, s.rec, newStoreRowError(s.line, err))
			return
		}
		written[id] = true
		if len(s.rec.Children) > 0 {
			r.insertChildren(ctx, agg, s.line, id, s.rec.Children)
		}
		agg.Inserted()
	}
}

func (r *Reconciler) lockKeys(s *slot) []string {
	prefix := r.schema.Entity + ":"
	keys := []string{prefix + "nk:" + r.schema.naturalKeyString(s.rec)}
	if s.rec.ID != "" {
		keys = append(keys, prefix+"id:"+s.rec.ID)
	}
	if s.match.RecordID != "" && s.match.RecordID != s.rec.ID {
		keys = append(keys, prefix+"id:"+s.match.RecordID)
	}
	return keys
}

// replaceChildren deletes and re-inserts a parent's children. Failures are warnings.
func (r *Reconciler) replaceChildren(ctx context.Context, agg *ResultAggregator, line int, parentID string, children []ChildRecord) {
	child := r.schema.Child
	if err := r.store.DeleteChildren(ctx, child.Entity, parentID); err != nil {
		r.warn(agg, line, fmt.Sprintf("could not replace %s: %v", child.Entity, err))
		return
	}
	if len(children) > 0 {
		r.insertChildren(ctx, agg, line, parentID, children)
	}
}

func (r *Reconciler) insertChildren(ctx context.Context, agg *ResultAggregator, line int, parentID string, children []ChildRecord) {
	child := r.schema.Child
	rows := make([]map[string]string, len(children))
	for i, c := range children {
		rows[i] = c.Fields
	}
	if err := r.store.InsertChildren(ctx, child.Entity, parentID, rows); err != nil {
		r.warn(agg, line, fmt.Sprintf("could not write %s: %v", child.Entity, err))
	}
}

func (r *Reconciler) warn(agg *ResultAggregator, line int, message string) {
	agg.Warn(line, message)
	r.logger.Warn("import row warning", "line", line, "warning", message)
}

func (r *Reconciler) fail(ctx context.Context, agg *ResultAggregator, rec *Record, e *RowError) {
	agg.Failed(*e)
	r.logger.Warn("import row failed", "line", e.Row, "kind", e.Kind, "error", e.Message)

	if e.Kind == KindPermissionDenied {
		entry := AuditEntry{
			Action:   ActionPermissionDenied,
			Entity:   r.schema.Entity,
			ImportID: r.opts.ImportID,
			FileName: r.opts.FileName,
			Line:     e.Row,
			Reason:   e.Message,
		}
		if rec != nil {
			entry.RowKey = rec.ID
			if entry.RowKey == "" {
				entry.RowKey = r.schema.naturalKeyString(rec)
			}
		}
		r.audit.LogAudit(ctx, entry)
	}
}

func toRowError(line int, err error) *RowError {
	var re *RowError
	if errors.As(err, &re) {
		return re
	}
	return newStoreRowError(line, err)
}
