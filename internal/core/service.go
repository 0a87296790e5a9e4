package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/google/uuid"
)

// DefaultImportTimeout is the maximum duration of a background import.
const DefaultImportTimeout = 10 * time.Minute

// resultRetention is how long finished imports stay queryable.
const resultRetention = 5 * time.Minute

// ImportOptions are per-call import settings.
type ImportOptions struct {
	DefaultOwner string // Principal used for unresolvable id-reference values
	BatchSize    int    // Overrides the configured batch size when > 0
}

// Service provides CSV import and export for every registered entity.
type Service struct {
	store     RecordStore
	directory PrincipalDirectory
	exporter  *Exporter
	locks     *KeyLocker
	limiter   *ImportLimiter
	audit     AuditLogger

	batchSize     int
	lookupWorkers int
	timeout       time.Duration
	defaultOwner  string
	cacheSize     int

	mu      sync.RWMutex
	imports map[string]*activeImport
}

type activeImport struct {
	ID       string
	Entity   string
	FileName string
	Cancel   context.CancelFunc
	Done     chan struct{}

	mu       sync.Mutex
	Progress ImportProgress
	Result   *ImportResult

	ListenerMu sync.Mutex
	Listeners  []chan ImportProgress
}

// NewService creates a Service. directory may be nil. A nil cfg uses defaults.
func NewService(store RecordStore, directory PrincipalDirectory, cfg *config.Config) (*Service, error) {
	s := &Service{
		store:         store,
		exporter:      NewExporter(store),
		locks:         NewKeyLocker(DefaultLockStripes),
		audit:         NewSlogAuditLogger(nil),
		batchSize:     DefaultBatchSize,
		lookupWorkers: DefaultLookupWorkers,
		timeout:       DefaultImportTimeout,
		imports:       make(map[string]*activeImport),
	}

	s.cacheSize = DefaultPrincipalCacheSize
	maxConcurrent, maxWait := DefaultMaxConcurrentImports, DefaultMaxWaitTime
	if cfg != nil {
		imp := cfg.Import
		if imp.BatchSize > 0 {
			s.batchSize = imp.BatchSize
		}
		if imp.LookupWorkers > 0 {
			s.lookupWorkers = imp.LookupWorkers
		}
		if imp.Timeout > 0 {
			s.timeout = imp.Timeout
		}
		s.defaultOwner = imp.DefaultOwner
		if imp.PrincipalCacheSize > 0 {
			s.cacheSize = imp.PrincipalCacheSize
		}
		maxConcurrent, maxWait = imp.MaxConcurrent, imp.MaxWaitTime
	}
	s.limiter = NewImportLimiter(maxConcurrent, maxWait)

	if directory != nil {
		if _, err := NewCachedDirectory(directory, s.cacheSize); err != nil {
			return nil, fmt.Errorf("create principal cache: %w", err)
		}
		s.directory = directory
	}

	return s, nil
}

// runDirectory returns a principal cache for a single import or preview.
// Lookups, misses included, live only as long as the run, so users added
// to the directory resolve on the next import.
func (s *Service) runDirectory() PrincipalDirectory {
	if s.directory == nil {
		return nil
	}
	cached, err := NewCachedDirectory(s.directory, s.cacheSize)
	if err != nil {
		// The size was accepted by NewService.
		return s.directory
	}
	return cached
}

// SetAuditLogger replaces the default slog audit logger.
func (s *Service) SetAuditLogger(l AuditLogger) {
	s.audit = l
}

// AuditLog returns recent audit entries when the configured audit logger
// persists them, ErrAuditUnavailable otherwise.
func (s *Service) AuditLog(ctx context.Context, q AuditQuery) ([]AuditEntry, error) {
	reader, ok := s.audit.(AuditReader)
	if !ok {
		return nil, ErrAuditUnavailable
	}
	if q.Limit <= 0 || q.Limit > 1000 {
		q.Limit = DefaultAuditLimit
	}
	if q.Entity != "" {
		if _, err := Lookup(q.Entity); err != nil {
			return nil, err
		}
	}
	return reader.RecentAudit(ctx, q)
}

// Entities returns information about all registered entities.
func (s *Service) Entities() []EntityInfo {
	schemas := All()
	infos := make([]EntityInfo, len(schemas))
	for i, schema := range schemas {
		infos[i] = schema.Info()
	}
	return infos
}

// Template returns the header-only CSV for entity.
func (s *Service) Template(entity string) (string, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return "", err
	}
	return Template(schema), nil
}

// Export renders every record of entity as CSV.
func (s *Service) Export(ctx context.Context, entity string) (*ExportFile, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}

	file, err := s.exporter.Export(ctx, schema)
	if err != nil {
		return nil, err
	}

	s.audit.LogAudit(ctx, AuditEntry{
		Action:       ActionExport,
		Entity:       entity,
		FileName:     file.FileName,
		RowsAffected: file.RecordCount,
	})
	return file, nil
}

// Import parses r and reconciles it synchronously.
// The returned result is non-nil whenever the file was parsed.
func (s *Service) Import(ctx context.Context, entity, fileName string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return nil, err
	}

	table, err := ParseReader(r)
	if err != nil {
		return s.fatalResult(entity, fileName, err), err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	importID := uuid.New().String()
	res, err := s.newReconciler(schema, importID, fileName, opts, nil).Run(ctx, table)
	s.auditImport(ctx, res)
	return res, err
}

// StartImport parses r and reconciles it in the background.
// Returns the import ID immediately. Use SubscribeProgress to get updates.
//
// The file is parsed before StartImport returns, so malformed input is
// reported synchronously. Returns ErrTooManyImports if no import slot becomes
// available within the configured wait time.
func (s *Service) StartImport(ctx context.Context, entity, fileName string, r io.Reader, opts ImportOptions) (string, error) {
	schema, err := Lookup(entity)
	if err != nil {
		return "", err
	}

	reader, counter := WrapForStreaming(r)
	table, err := parseReader(reader)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	importID := uuid.New().String()

	// Request values (client IP, user agent) survive for auditing; cancellation does not.
	importCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)

	imp := &activeImport{
		ID:       importID,
		Entity:   entity,
		FileName: fileName,
		Cancel:   cancel,
		Done:     make(chan struct{}),
		Progress: ImportProgress{
			ImportID: importID,
			Entity:   entity,
			FileName: fileName,
			Phase:    PhaseStarting,
			Total:    table.Len(),
			Bytes:    counter.BytesRead(),
		},
	}

	s.mu.Lock()
	s.imports[importID] = imp
	s.mu.Unlock()

	// Process in background with panic recovery to ensure limiter release
	go func() {
		defer s.limiter.Release()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"import_id", importID,
					"entity", entity,
					"panic", r,
				)
				imp.finish(nil, PhaseFailed, fmt.Sprintf("internal error: %v", r))
				s.cleanup(importID, resultRetention)
			}
		}()
		s.runImport(importCtx, imp, schema, table, opts)
	}()

	return importID, nil
}

func (s *Service) runImport(ctx context.Context, imp *activeImport, schema *Schema, table *Table, opts ImportOptions) {
	imp.update(func(p *ImportProgress) { p.Phase = PhaseReconciling })

	onProgress := func(processed, total int) {
		imp.update(func(p *ImportProgress) {
			p.Processed = processed
			p.Total = total
		})
	}

	res, err := s.newReconciler(schema, imp.ID, imp.FileName, opts, onProgress).Run(ctx, table)
	s.auditImport(ctx, res)

	switch {
	case res.Cancelled:
		imp.finish(res, PhaseCancelled, MapError(err).Message)
	case err != nil:
		imp.finish(res, PhaseFailed, FormatUserError(err))
	default:
		imp.finish(res, PhaseComplete, "")
	}
	s.cleanup(imp.ID, resultRetention)
}

func (s *Service) newReconciler(schema *Schema, importID, fileName string, opts ImportOptions, onProgress ProgressCallback) *Reconciler {
	owner := opts.DefaultOwner
	if owner == "" {
		owner = s.defaultOwner
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = s.batchSize
	}

	return NewReconciler(schema, s.store, NewNormalizer(schema, s.runDirectory(), owner), s.locks, s.audit, ReconcileOptions{
		BatchSize:     batch,
		LookupWorkers: s.lookupWorkers,
		ImportID:      importID,
		FileName:      fileName,
		OnProgress:    onProgress,
	})
}

func (s *Service) fatalResult(entity, fileName string, err error) *ImportResult {
	agg := NewResultAggregator(entity, 0)
	agg.Fatal(err.Error())
	res := agg.Result()
	res.FileName = fileName
	return res
}

func (s *Service) auditImport(ctx context.Context, res *ImportResult) {
	action := ActionImport
	if res.Cancelled {
		action = ActionImportCancelled
	}
	s.audit.LogAudit(ctx, AuditEntry{
		Action:       action,
		Entity:       res.Entity,
		ImportID:     res.ImportID,
		FileName:     res.FileName,
		RowsAffected: res.SuccessCount + res.UpdateCount,
		Reason:       res.Fatal,
	})
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the import completes.
func (s *Service) SubscribeProgress(importID string) (<-chan ImportProgress, error) {
	imp, err := s.get(importID)
	if err != nil {
		return nil, err
	}

	ch := make(chan ImportProgress, 10)

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	// Send current progress immediately
	ch <- imp.snapshot()

	select {
	case <-imp.Done:
		close(ch)
	default:
		imp.Listeners = append(imp.Listeners, ch)
	}
	return ch, nil
}

// CancelImport requests cancellation. Rows already reconciled are kept.
func (s *Service) CancelImport(importID string) error {
	imp, err := s.get(importID)
	if err != nil {
		return err
	}
	imp.Cancel()
	return nil
}

// GetImportResult returns the result of an import.
// Blocks until the import completes or ctx is done.
func (s *Service) GetImportResult(ctx context.Context, importID string) (*ImportResult, error) {
	imp, err := s.get(importID)
	if err != nil {
		return nil, err
	}

	select {
	case <-imp.Done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.Result, nil
}

// GetImportProgress returns the current progress without blocking.
func (s *Service) GetImportProgress(importID string) (ImportProgress, error) {
	imp, err := s.get(importID)
	if err != nil {
		return ImportProgress{}, err
	}
	return imp.snapshot(), nil
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until every running import finishes or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) get(importID string) (*activeImport, error) {
	s.mu.RLock()
	imp, ok := s.imports[importID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("import not found: %s", importID)
	}
	return imp, nil
}

// cleanup removes the import from tracking after a delay.
func (s *Service) cleanup(importID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.imports, importID)
		s.mu.Unlock()
	})
}

func (imp *activeImport) snapshot() ImportProgress {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.Progress
}

// update applies fn to the progress and notifies listeners.
func (imp *activeImport) update(fn func(*ImportProgress)) {
	imp.mu.Lock()
	fn(&imp.Progress)
	imp.mu.Unlock()
	imp.notifyProgress()
}

// finish records the outcome and releases everyone waiting on the import.
func (imp *activeImport) finish(res *ImportResult, phase ImportPhase, errMsg string) {
	imp.mu.Lock()
	imp.Result = res
	imp.Progress.Phase = phase
	imp.Progress.Error = errMsg
	if res != nil {
		imp.Progress.Processed = res.Processed()
	}
	imp.mu.Unlock()

	imp.notifyProgress()

	// Done closes under ListenerMu so a concurrent subscriber either sees it
	// or is registered before closeListeners runs.
	imp.ListenerMu.Lock()
	close(imp.Done)
	imp.ListenerMu.Unlock()
	imp.closeListeners()
}

// notifyProgress sends progress updates to all listeners.
func (imp *activeImport) notifyProgress() {
	progress := imp.snapshot()

	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	for _, ch := range imp.Listeners {
		select {
		case ch <- progress:
		default:
			// Listener is slow, skip this update
		}
	}
}

// closeListeners closes all listener channels.
func (imp *activeImport) closeListeners() {
	imp.ListenerMu.Lock()
	defer imp.ListenerMu.Unlock()

	for _, ch := range imp.Listeners {
		close(ch)
	}
	imp.Listeners = nil
}
