package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/logging"
	"github.com/go-chi/chi/v5"
)

// importResultResponse renders the duration as text.
type importResultResponse struct {
	*core.ImportResult
	Duration string `json:"duration"`
}

func toResponse(res *core.ImportResult) importResultResponse {
	return importResultResponse{ImportResult: res, Duration: res.Duration.String()}
}

// upload is a CSV file taken from a request.
type upload struct {
	body     io.Reader
	fileName string
	size     int64
	owner    string
	cleanup  func()
}

// readUpload accepts a CSV as multipart field "file" or as the raw request
// body. The default owner comes from ?default_owner= or the form field of the
// same name.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, entity string) (*upload, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	up := &upload{
		fileName: r.URL.Query().Get("filename"),
		owner:    r.URL.Query().Get("default_owner"),
		cleanup:  func() {},
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return nil, formError(err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("no file provided")
		}
		up.body, up.fileName, up.size = file, header.Filename, header.Size
		up.cleanup = func() { file.Close() }
		if v := r.FormValue("default_owner"); v != "" {
			up.owner = v
		}
	} else {
		up.body, up.size = r.Body, r.ContentLength
	}

	if up.fileName == "" {
		up.fileName = entity + ".csv"
	}
	if up.owner != "" && !core.IsUUID(up.owner) {
		up.cleanup()
		return nil, fmt.Errorf("default_owner %q is not a valid id", up.owner)
	}
	return up, nil
}

// handleImport reconciles an uploaded CSV. By default the import runs in the
// background and the import ID is returned; with ?wait=true the result is
// returned when reconciliation ends.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	up, err := s.readUpload(w, r, entity)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer up.cleanup()

	ctx := WithRequestMetadata(r.Context(), r)
	opts := core.ImportOptions{DefaultOwner: up.owner}
	body, fileName := up.body, up.fileName

	if r.URL.Query().Get("wait") == "true" {
		res, err := s.service.Import(ctx, entity, fileName, body, opts)
		if err != nil {
			s.respondError(w, r, err, 0)
			return
		}
		writeJSON(w, toResponse(res))
		return
	}

	importID, err := s.service.StartImport(ctx, entity, fileName, body, opts)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}

	logging.WithFields(ctx, "import_id", importID, "entity", entity).Info("import started",
		"file_name", fileName,
		"size", up.size,
	)

	w.Header().Set("Location", "/api/import/"+importID+"/result")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"importId": importID}); err != nil {
		logging.FromContext(ctx).Error("json encode error", "error", err)
	}
}

// handlePreview reports what importing the uploaded CSV would do without
// writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	up, err := s.readUpload(w, r, entity)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	defer up.cleanup()

	preview, err := s.service.Preview(r.Context(), entity, up.body, core.ImportOptions{DefaultOwner: up.owner})
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	writeJSON(w, preview)
}

// formError distinguishes oversized bodies from malformed forms.
func formError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("file too large: limit is %d bytes", tooLarge.Limit)
	}
	return fmt.Errorf("invalid csv upload form: %w", err)
}

// handleImportProgress streams import progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	// The event ID is the progress percentage, so a reconnecting client can
	// skip events it already received.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(importID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed: import complete, failed or cancelled
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && progress.Phase == core.PhaseReconciling {
				continue
			}

			data, err := json.Marshal(progress)
			if err != nil {
				logging.FromContext(r.Context()).Error("encode progress", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleCancelImport cancels an in-progress import.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	if err := s.service.CancelImport(importID); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"status": "cancelling"})
}

// handleImportResult returns the final result of an import, waiting for it
// to finish if necessary.
func (s *Server) handleImportResult(w http.ResponseWriter, r *http.Request) {
	importID := chi.URLParam(r, "importID")

	res, err := s.service.GetImportResult(r.Context(), importID)
	if err != nil {
		s.respondError(w, r, err, 0)
		return
	}
	if res == nil {
		progress, _ := s.service.GetImportProgress(importID)
		s.respondError(w, r, errors.New(progress.Error), http.StatusInternalServerError)
		return
	}

	writeJSON(w, toResponse(res))
}
