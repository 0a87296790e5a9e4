package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - logged with full technical details and the request ID (server-side)
//   - mapped via core.MapError to a user-friendly message with an action
//   - returned to the client as JSON with a support code
//
// Import-specific errors also pick the HTTP status: malformed files are 400,
// unknown entities and imports 404, a full import queue 503.

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/JonMunkholm/crmsync/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the mapped user message.
// A zero statusCode derives the status from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	if statusCode == 0 {
		statusCode = statusFor(err)
	}
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	respondErrorJSON(w, userMsg, err, statusCode)
}

// writeError writes a JSON error for a plain message, used by middleware.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logging.FromContext(r.Context()).Warn("http error", "status", status, "message", message)
	respondErrorJSON(w, core.MapError(errors.New(message)), nil, status)
}

// respondErrorJSON writes a JSON error response.
// Fatal input errors keep their own text since it names the offending column.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, err error, statusCode int) {
	detail := msg.Message
	var fatal *core.FatalInputError
	if errors.As(err, &fatal) {
		detail = fatal.Message
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   detail,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}); encErr != nil {
		slog.Error("json encode error", "error", encErr)
	}
}

// statusFor maps core errors to HTTP status codes.
func statusFor(err error) int {
	var fatal *core.FatalInputError
	switch {
	case errors.As(err, &fatal), errors.Is(err, core.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnknownEntity), errors.Is(err, core.ErrAuditUnavailable):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrPermissionDenied):
		return http.StatusForbidden
	case strings.Contains(err.Error(), "import not found"):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
