package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/go-chi/chi/v5"
)

// handleHealth reports liveness and import slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// handleListEntities returns every registered entity with its columns.
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.Entities())
}

// handleTemplate serves a header-only CSV for an entity.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	content, err := s.service.Template(entity)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	writeCSV(w, r, fmt.Sprintf("%s_template.csv", entity), content)
}

// handleExport serves every record of an entity as CSV.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	ctx := WithRequestMetadata(r.Context(), r)

	file, err := s.service.Export(ctx, entity)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.FromContext(ctx).Info("export served",
		"entity", entity,
		"records", file.RecordCount,
	)
	writeCSV(w, r, file.FileName, file.Content)
}

// handleImportQueueStatus returns the current state of the import limiter.
func (s *Server) handleImportQueueStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.service.LimiterStatus())
}

func writeCSV(w http.ResponseWriter, r *http.Request, fileName, content string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, fileName))
	if _, err := w.Write([]byte(content)); err != nil {
		logging.FromContext(r.Context()).Warn("write csv", "error", err)
	}
}
