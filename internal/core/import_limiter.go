package core

// import_limiter.go bounds how many files reconcile against the store at once.
//
// Service.Import and Service.StartImport parse the file first and only then
// take a slot, so a malformed upload is rejected without queueing. The slot
// is held for the whole reconciliation: until Import returns, or until the
// background goroutine of StartImport finishes (panics included). An import
// that cannot get a slot within the configured wait fails with
// ErrTooManyImports, which the HTTP layer reports as 503 (IMP002).
//
// Each reconciling import runs up to Import.LookupWorkers concurrent store
// lookups, so MaxConcurrent times LookupWorkers should stay below the
// database pool size.
//
// On SIGTERM the server calls Service.WaitForImports, which drains the
// limiter, before shutting down the HTTP listener.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"
)

// ErrTooManyImports is returned when every import slot stays occupied for the
// whole wait time. Clients should retry after a short delay.
var ErrTooManyImports = errors.New("too many concurrent imports, please try again later")

// DefaultMaxConcurrentImports is used when IMPORT_MAX_CONCURRENT is unset.
const DefaultMaxConcurrentImports = 5

// DefaultMaxWaitTime is how long an import waits for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// drainPollInterval is how often WaitForDrain rechecks the active count.
const drainPollInterval = 100 * time.Millisecond

// ImportLimiter is a counting semaphore over reconciling imports.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration
	active  atomic.Int64
}

// NewImportLimiter creates a limiter with maxConcurrent slots. Non-positive
// arguments fall back to the defaults.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot for one import, waiting at most maxWait.
// A cancelled ctx returns ctx.Err(); an expired wait returns ErrTooManyImports.
// Every successful Acquire must be paired with exactly one Release.
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.active.Add(1)
		return nil
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTooManyImports
	}
}

// Release frees the slot taken by Acquire.
func (l *ImportLimiter) Release() {
	l.active.Add(-1)
	<-l.slots
}

// ActiveCount returns the number of imports currently reconciling.
func (l *ImportLimiter) ActiveCount() int {
	return int(l.active.Load())
}

// Available returns the number of free slots.
func (l *ImportLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no import holds a slot or ctx is done.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()

	for l.ActiveCount() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// ImportLimiterStatus is served by /healthz and /api/import/status.
type ImportLimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns a snapshot of slot usage.
func (l *ImportLimiter) Status() ImportLimiterStatus {
	return ImportLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: cap(l.slots),
	}
}
