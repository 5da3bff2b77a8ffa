package web

// errors.go centralizes error responses for the API. Handlers hand errors to
// respondError, which classifies known domain errors into a status code and a
// stable machine-readable code, logs the technical detail server-side, and
// returns a sanitized JSON body to the client.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gradebook/internal/logging"
	"gradebook/internal/reconcile"
	"gradebook/internal/store"
)

// ErrorResponse is the JSON structure for API error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError classifies err, logs it with the request ID, and writes the
// matching JSON error response. Unclassified errors become 500s with a
// generic body so internal details never leak to clients.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classifyError(err)

	logger := logging.FromContext(r.Context())
	logger.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", code,
		"error", err.Error(),
	)

	writeError(w, status, code, message)
}

// classifyError maps domain errors to an HTTP status, stable code, and
// client-safe message.
func classifyError(err error) (int, string, string) {
	var missing *reconcile.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest, "UPLOAD_MISSING_COLUMNS", missing.Error()
	case errors.Is(err, reconcile.ErrExamMismatch):
		return http.StatusBadRequest, "EXAM_MISMATCH", "exam does not belong to the class"
	case errors.Is(err, reconcile.ErrExamClosed):
		return http.StatusConflict, "EXAM_CLOSED", "exam is already published"
	case errors.Is(err, store.ErrEmptyCriteria), errors.Is(err, store.ErrEmptyUpdate),
		errors.Is(err, store.ErrMissingField):
		return http.StatusBadRequest, "VALIDATION", err.Error()
	case store.IsUniqueViolation(err):
		return http.StatusConflict, "DUPLICATE", "a record with those values already exists"
	case errors.Is(err, store.ErrInvalidColumn), errors.Is(err, store.ErrInvalidOrder):
		// A rejected column here is a handler bug, not client input.
		return http.StatusInternalServerError, "INTERNAL", "internal server error"
	default:
		return http.StatusInternalServerError, "INTERNAL", "internal server error"
	}
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}

// writeJSON encodes v and writes it with the given status. Encoding failures
// are logged only; headers are already on the wire.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", "error", err)
	}
}
