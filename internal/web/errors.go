package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with the request id and technical detail, then
// mapped through upload.MapError and rendered for the client: an htmx
// fragment, a JSON body for API clients, or plain text.

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/vendorrates/internal/logging"
	"github.com/JonMunkholm/vendorrates/internal/upload"
	"github.com/JonMunkholm/vendorrates/internal/web/templates"
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a user-facing message in the format the
// client asked for.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := upload.MapError(err)

	logging.FromContext(r.Context()).Log(r.Context(), errorLevel(err, statusCode), "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)

	switch {
	case isHTMX(r):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(statusCode)
		templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w)
	case wantsJSON(r):
		s.writeJSON(w, statusCode, ErrorResponse{
			Error:   msg.Message,
			Message: msg.Message,
			Action:  msg.Action,
			Code:    msg.Code,
		})
	default:
		http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
	}
}

// errorLevel logs mapped client errors at warn and everything else at error.
func errorLevel(err error, statusCode int) slog.Level {
	if statusCode >= http.StatusInternalServerError || !upload.IsUserFacing(err) {
		return slog.LevelError
	}
	return slog.LevelWarn
}

// isHTMX checks if the request is an htmx request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
