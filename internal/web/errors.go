package web

// errors.go provides unified error response handling for the web layer.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Formatted as JSON for API clients and as a redirect or HTML alert
//     for browsers
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. The status code is derived from the error with statusFor
//  4. Error is mapped via core.MapError to get the user-facing message
//  5. Technical error + context is logged with request ID for correlation

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/dataport/internal/core"
	"github.com/JonMunkholm/dataport/internal/logging"
	"github.com/JonMunkholm/dataport/internal/web/templates"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errBadRequest  = errors.New("malformed request")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat),
		errors.Is(err, core.ErrCorruptFile),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrNoFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrInvalidHeaderRow),
		errors.Is(err, core.ErrEmptySelection),
		errors.Is(err, core.ErrNoColumnsSelected),
		errors.Is(err, core.ErrUnknownFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrSessionNotFound), errors.Is(err, core.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrTooManyJobs):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError logs the technical error and writes the user-facing one.
// Browsers are redirected for a missing session and get an HTML alert
// otherwise; everyone else gets JSON.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
	} else {
		log.Warn("request error", attrs...)
	}

	switch {
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, status)
	case errors.Is(err, core.ErrSessionNotFound):
		redirectWithError(w, r, "/data", userMsg.Message+". "+userMsg.Action)
	default:
		respondErrorHTML(w, r, userMsg, status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error alert fragment.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		slog.Error("render error alert", "error", err)
	}
}

// redirectWithError sends the browser to target with a flash message.
func redirectWithError(w http.ResponseWriter, r *http.Request, target, message string) {
	http.Redirect(w, r, target+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
