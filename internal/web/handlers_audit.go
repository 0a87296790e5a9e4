package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/JonMunkholm/crmsync/internal/core"
)

// auditQuery reads ?entity=, ?action= and ?limit= from the request.
func auditQuery(r *http.Request) core.AuditQuery {
	return core.AuditQuery{
		Entity: r.URL.Query().Get("entity"),
		Action: core.AuditAction(r.URL.Query().Get("action")),
		Limit:  parseIntParam(r, "limit", core.DefaultAuditLimit),
	}
}

// handleAuditLog returns recent audit entries as JSON.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.AuditLog(r.Context(), auditQuery(r))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleAuditLogExport returns the same entries as a CSV download.
func (s *Server) handleAuditLogExport(w http.ResponseWriter, r *http.Request) {
	entries, err := s.service.AuditLog(r.Context(), auditQuery(r))
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.CreatedAt.UTC().Format(core.ExportTimeLayout),
			string(e.Action),
			string(e.Severity),
			e.Entity,
			e.ImportID,
			e.FileName,
			cast.ToString(e.Line),
			e.RowKey,
			cast.ToString(e.RowsAffected),
			e.IPAddress,
			e.Reason,
		})
	}
	content := core.Serialize([]string{
		"Timestamp", "Action", "Severity", "Entity", "Import ID", "File Name",
		"Line", "Row Key", "Rows Affected", "IP Address", "Reason",
	}, rows)

	writeCSV(w, r, fmt.Sprintf("audit_log_%s.csv", time.Now().Format("20060102_150405")), content)
}

// parseIntParam reads a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := cast.ToIntE(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
