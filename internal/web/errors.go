package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is:
//   - logged with the technical detail and request ID (server-side)
//   - mapped to a user message and support code via core.MapError
//   - rendered as JSON for API clients, or as an HTML page otherwise

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/SoilMap/internal/core"
	"github.com/JonMunkholm/SoilMap/internal/export"
	"github.com/JonMunkholm/SoilMap/internal/logging"
	"github.com/JonMunkholm/SoilMap/internal/session"
	"github.com/JonMunkholm/SoilMap/internal/web/views"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a user-friendly response in the format
// the client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request error", args...)
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// statusFor picks the HTTP status of a pipeline, upload or export error.
// Rasterization failures and anything unrecognised are 500s.
func statusFor(err error) int {
	var schemaErr *core.SchemaError
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &schemaErr), errors.Is(err, core.ErrNoValidRows):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNoPrimary):
		return http.StatusConflict
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyRenders), errors.Is(err, session.ErrNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, export.ErrUnsupportedFormat), errors.Is(err, core.ErrEmptyFile):
		return http.StatusBadRequest
	}
	switch core.MapError(err).Code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002", "FILE004", "INP001":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error page.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	notice := views.Notice{Message: msg.Message, Action: msg.Action, Code: msg.Code}
	if err := views.ErrorPage(notice).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v as JSON and writes it to w with status.
// Encoding errors are logged since headers are already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
