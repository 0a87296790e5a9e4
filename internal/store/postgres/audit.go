package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/crmsync/internal/core"
)

var _ core.AuditReader = (*Store)(nil)

// LogAudit persists entry to audit_log. A failed insert is logged and
// otherwise ignored so auditing never fails an import.
func (s *Store) LogAudit(ctx context.Context, entry core.AuditEntry) {
	entry = core.CompleteAuditEntry(ctx, entry)

	var ip *netip.Addr
	if entry.IPAddress != "" {
		host := entry.IPAddress
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if addr, err := netip.ParseAddr(host); err == nil {
			ip = &addr
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_log (action, severity, entity, import_id, file_name, line,
			row_key, rows_affected, reason, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		string(entry.Action), string(entry.Severity), entry.Entity,
		core.ToPgUUID(entry.ImportID), core.ToPgText(entry.FileName), toPgInt4(entry.Line),
		core.ToPgText(entry.RowKey), toPgInt4(entry.RowsAffected), core.ToPgText(entry.Reason),
		ip, core.ToPgText(entry.UserAgent), entry.CreatedAt,
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
		args = append(args, q.Entity)
		conds = append(conds, fmt.Sprintf("entity = $%d", len(args)))
	}
	if q.Action != "" {
		args = append(args, string(q.Action))
		conds = append(conds, fmt.Sprintf("action = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, q.Limit)

	query := `SELECT action, severity, entity, import_id::text, file_name, line, row_key,
		rows_affected, reason, host(ip_address), user_agent, created_at
		FROM audit_log` + where + fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapError("query audit log", err)
	}
	defer rows.Close()

	entries := make([]core.AuditEntry, 0)
	for rows.Next() {
		var (
			e                          core.AuditEntry
			action, severity           string
			importID, fileName, rowKey pgtype.Text
			reason, ip, userAgent      pgtype.Text
			line, rowsAffected         pgtype.Int4
		)
		if err := rows.Scan(&action, &severity, &e.Entity, &importID, &fileName, &line, &rowKey,
			&rowsAffected, &reason, &ip, &userAgent, &e.CreatedAt); err != nil {
			return nil, wrapError("scan audit log", err)
		}
		e.Action = core.AuditAction(action)
		e.Severity = core.AuditSeverity(severity)
		e.ImportID = importID.String
		e.FileName = fileName.String
		e.Line = int(line.Int32)
		e.RowKey = rowKey.String
		e.RowsAffected = int(rowsAffected.Int32)
		e.Reason = reason.String
		e.IPAddress = ip.String
		e.UserAgent = userAgent.String
		entries = append(entries, e)
	}
	return entries, wrapError("query audit log", rows.Err())
}

func toPgInt4(n int) pgtype.Int4 {
	if n == 0 {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(n), Valid: true}
}

var _ core.AuditPurger = (*Store)(nil)

// PurgeAuditBefore deletes audit entries created before cutoff.
func (s *Store) PurgeAuditBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, wrapError("purge audit log", err)
	}
	return tag.RowsAffected(), nil
}
