package core

import (
	"context"
	"log/slog"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImport           AuditAction = "import"
	ActionImportCancelled  AuditAction = "import_cancelled"
	ActionExport           AuditAction = "export"
	ActionPermissionDenied AuditAction = "permission_denied"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	Action       AuditAction   `json:"action"`
	Severity     AuditSeverity `json:"severity"`
	Entity       string        `json:"entity"`
	ImportID     string        `json:"importId,omitempty"`
	FileName     string        `json:"fileName,omitempty"`
	Line         int           `json:"line,omitempty"`
	RowKey       string        `json:"rowKey,omitempty"`
	RowsAffected int           `json:"rowsAffected,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	IPAddress    string        `json:"ipAddress,omitempty"`
	UserAgent    string        `json:"userAgent,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// AuditLogger records security- and data-relevant events.
// Implementations must not fail the operation being audited.
type AuditLogger interface {
	LogAudit(ctx context.Context, entry AuditEntry)
}

// DefaultAuditLimit caps audit queries without an explicit limit.
const DefaultAuditLimit = 100

// AuditQuery filters audit log reads. Zero values match everything.
type AuditQuery struct {
	Entity string
	Action AuditAction
	Limit  int
}

// AuditReader is an AuditLogger that persists entries and can read them back,
// newest first.
type AuditReader interface {
	AuditLogger
	RecentAudit(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImport, ActionPermissionDenied:
		return SeverityHigh
	case ActionExport:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// SlogAuditLogger writes audit entries as structured log records.
type SlogAuditLogger struct {
	logger *slog.Logger
}

// NewSlogAuditLogger creates an audit logger. A nil logger uses slog.Default().
func NewSlogAuditLogger(logger *slog.Logger) *SlogAuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAuditLogger{logger: logger.With("audit", true)}
}

// LogAudit fills severity, timestamp and request metadata, then logs the entry.
func (l *SlogAuditLogger) LogAudit(ctx context.Context, entry AuditEntry) {
	entry = CompleteAuditEntry(ctx, entry)

	level := slog.LevelInfo
	if entry.Action == ActionPermissionDenied {
		level = slog.LevelWarn
	}

	l.logger.LogAttrs(ctx, level, "audit",
		slog.String("action", string(entry.Action)),
		slog.String("severity", string(entry.Severity)),
		slog.String("entity", entry.Entity),
		slog.String("import_id", entry.ImportID),
		slog.String("file_name", entry.FileName),
		slog.Int("line", entry.Line),
		slog.String("row_key", entry.RowKey),
		slog.Int("rows_affected", entry.RowsAffected),
		slog.String("reason", entry.Reason),
		slog.String("ip", entry.IPAddress),
		slog.String("user_agent", entry.UserAgent),
		slog.Time("created_at", entry.CreatedAt),
	)
}

// CompleteAuditEntry fills severity, timestamp and the request metadata
// carried by ctx where the entry leaves them empty.
func CompleteAuditEntry(ctx context.Context, entry AuditEntry) AuditEntry {
	if entry.Severity == "" {
		entry.Severity = determineSeverity(entry.Action)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	meta := RequestMetaFrom(ctx)
	if entry.IPAddress == "" {
		entry.IPAddress = meta.IPAddress
	}
	if entry.UserAgent == "" {
		entry.UserAgent = meta.UserAgent
	}
	return entry
}
