package core

// scheduler.go provides background jobs for maintenance tasks.
//
// Currently implements audit log retention: entries older than the retention
// window are deleted once on start and then every CheckInterval. A failed run
// is logged and retried on the next tick; it never stops the application.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetentionInterval is how often the retention job runs when unset.
const DefaultRetentionInterval = 24 * time.Hour

// RetentionConfig holds configuration for the audit retention job.
type RetentionConfig struct {
	RetentionDays int           // Days to keep audit entries; 0 disables the job
	CheckInterval time.Duration // How often to run (default: 24h)
}

// AuditPurger is an audit store that can delete old entries.
type AuditPurger interface {
	PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PurgeAudit deletes audit entries older than days. Returns
// ErrAuditUnavailable when the audit logger does not persist entries.
func (s *Service) PurgeAudit(ctx context.Context, days int) (int64, error) {
	purger, ok := s.audit.(AuditPurger)
	if !ok {
		return 0, ErrAuditUnavailable
	}
	return s.runRetentionJob(ctx, purger, days)
}

// StartAuditRetention blocks, purging expired audit entries immediately and
// then every CheckInterval, until ctx is cancelled. Run it in a goroutine.
func (s *Service) StartAuditRetention(ctx context.Context, cfg RetentionConfig) {
	purger, ok := s.audit.(AuditPurger)
	if !ok || cfg.RetentionDays <= 0 {
		slog.Info("audit retention disabled", "retention_days", cfg.RetentionDays, "persistent", ok)
		return
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultRetentionInterval
	}

	slog.Info("audit retention started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, purger, cfg.RetentionDays)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("audit retention stopped")
			return
		case <-ticker.C:
			s.runRetentionJob(ctx, purger, cfg.RetentionDays)
		}
	}
}

// runRetentionJob performs one purge cycle.
func (s *Service) runRetentionJob(ctx context.Context, purger AuditPurger, days int) (int64, error) {
	start := time.Now()
	cutoff := start.UTC().AddDate(0, 0, -days)

	purged, err := purger.PurgeAuditBefore(ctx, cutoff)
	if err != nil {
		slog.Error("audit purge failed", "cutoff", cutoff, "error", err)
		return 0, err
	}

	slog.Info("purged audit log entries",
		"entries_purged", purged,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged, nil
}
