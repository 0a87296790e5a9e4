package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/JonMunkholm/crmsync/internal/core"
)

var _ core.AuditReader = (*Store)(nil)

// LogAudit persists entry. Failures are logged and otherwise ignored.
func (s *Store) LogAudit(ctx context.Context, entry core.AuditEntry) {
	entry = core.CompleteAuditEntry(ctx, entry)

	ip := entry.IPAddress
	if h, _, err := net.SplitHostPort(ip); err == nil {
		ip = h
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (action, severity, entity, import_id, file_name, line,
			row_key, rows_affected, reason, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(entry.Action), string(entry.Severity), entry.Entity,
		nullable(entry.ImportID), nullable(entry.FileName), entry.Line,
		nullable(entry.RowKey), entry.RowsAffected, nullable(entry.Reason),
		nullable(ip), nullable(entry.UserAgent), entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		slog.Warn("failed to persist audit entry",
			"action", entry.Action,
			"entity", entry.Entity,
			"import_id", entry.ImportID,
			"error", err,
		)
	}
}

// RecentAudit implements core.AuditReader.
func (s *Store) RecentAudit(ctx context.Context, q core.AuditQuery) ([]core.AuditEntry, error) {
	var conds []string
	var args []any
	if q.Entity != "" {
		conds = append(conds, "entity = ?")
		args = append(args, q.Entity)
	}
	if q.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, string(q.Action))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.Limit)

	rows, err := s.db.QueryContext(ctx, `SELECT action, severity, entity, import_id, file_name,
		line, row_key, rows_affected, reason, ip_address, user_agent, created_at
		FROM audit_log`+where+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		return nil, wrapError("query audit log", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		var (
			e                           core.AuditEntry
			action, severity, createdAt string
			importID, fileName, rowKey  sql.NullString
			reason, ip, userAgent       sql.NullString
		)
		if err := rows.Scan(&action, &severity, &e.Entity, &importID, &fileName, &e.Line, &rowKey,
			&e.RowsAffected, &reason, &ip, &userAgent, &createdAt); err != nil {
			return nil, wrapError("scan audit log", err)
		}
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(severity)
		e.ImportID = importID.String
		e.FileName = fileName.String
		e.RowKey = rowKey.String
		e.Reason = reason.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, wrapError("query audit log", rows.Err())
}

var _ core.AuditPurger = (*Store)(nil)

// PurgeAuditBefore deletes audit entries created before cutoff. Timestamps
// are compared through julianday since RFC3339Nano text does not sort.
func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM audit_log WHERE julianday(created_at) < julianday(?)`,
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, wrapError("purge audit log", err)
	}
	n, err := res.RowsAffected()
	return n, wrapError("purge audit log", err)
}
