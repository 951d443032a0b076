package web

// errors.go renders failures as coded JSON responses.
//
// The technical error is logged with the request ID; the client gets the
// message from core.MapError. Errors that map to nothing specific fall back
// to the route's own message ("File validation failed", "Data import failed").

import (
	"net/http"

	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its mapped message. fallback replaces the
// generic message for unmapped errors.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", msg.Status,
		"error", err.Error(),
		"code", msg.Code,
	)

	title := msg.Message
	if !core.IsUserFacing(err) && fallback != "" {
		title = fallback
	}
	writeJSON(w, msg.Status, ErrorResponse{
		Error:   title,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondMessage writes a fixed client error that needs no mapping.
func respondMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Message: message})
}
