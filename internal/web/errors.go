package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request id, then mapped
// through core.MapError to a user message with a stable code. Clients asking
// for JSON and API calls without an HTML Accept header get an ErrorResponse
// body. Browsers get an error page and other callers an HTML fragment.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/planos/internal/core"
	"github.com/JonMunkholm/planos/internal/logging"
	"github.com/JonMunkholm/planos/internal/web/templates"
)

var errRateLimited = errors.New("rate limit exceeded")

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Action    string `json:"action,omitempty"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// respondError logs err and writes the mapped user message with statusCode.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	requestID := middleware.GetReqID(r.Context())

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if wantsJSON(r) {
		render.Status(r, statusCode)
		render.JSON(w, r, ErrorResponse{
			Error:     userMsg.Message,
			Message:   userMsg.Message,
			Action:    userMsg.Action,
			Code:      userMsg.Code,
			RequestID: requestID,
		})
		return
	}

	// Form posts get a full page; fragment requests only the alert.
	page := templates.ErrorAlert(userMsg)
	if acceptsHTML(r) {
		page = templates.ErrorPage(userMsg)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := page.Render(r.Context(), w); err != nil {
		logger.Error("render error alert", "error", err)
	}
}

// statusFor picks the HTTP status for an extraction failure.
func statusFor(err error) int {
	switch core.MapError(err).Code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002", "FILE003", "FILE004", "FILE005", "VAL001":
		return http.StatusBadRequest
	case "EMPTY001":
		return http.StatusUnprocessableEntity
	case "UPL002":
		return http.StatusServiceUnavailable
	case "UPL004":
		return 499
	case "UPL005":
		return http.StatusGatewayTimeout
	case "RATE001":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// wantsJSON checks if the client prefers a JSON response. An explicit
// Accept header wins over the /api/ default so browser form posts get HTML.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if acceptsHTML(r) {
		return false
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	// API routes default to JSON
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// acceptsHTML reports whether the client asked for an HTML document.
func acceptsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
