package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/CrewImport/internal/core"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/sheet"
)

// ValidateResponse is returned by POST /import/validate.
type ValidateResponse struct {
	Success     bool                   `json:"success"`
	Validation  *core.ValidationResult `json:"validation"`
	PreviewData []core.PreviewRow      `json:"previewData"`
	Filename    string                 `json:"filename"`
}

// ImportResponse is returned by POST /import/import on commit.
type ImportResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Result  *core.ImportResult `json:"result"`
}

// RejectedResponse is returned by POST /import/import when the upload has errors.
type RejectedResponse struct {
	Error      string                 `json:"error"`
	Validation *core.ValidationResult `json:"validation"`
}

// handleTemplate serves the example workbook for an entity type.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	entity, err := schema.Parse(chi.URLParam(r, "type"))
	if err != nil {
		respondMessage(w, http.StatusBadRequest, "Invalid template type")
		return
	}

	data, filename, err := s.service.Template(entity)
	if err != nil {
		s.respondError(w, r, err, "Failed to generate template")
		return
	}

	w.Header().Set("Content-Type", sheet.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", `attachment; filename="`+url.PathEscape(filename)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleValidate runs a dry run over the uploaded file.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, "File validation failed")
		return
	}

	v, err := s.service.Validate(r.Context(), up.Entity, up.Data)
	if err != nil {
		s.respondError(w, r, err, "File validation failed")
		return
	}

	writeJSON(w, http.StatusOK, ValidateResponse{
		Success:     true,
		Validation:  v.Result,
		PreviewData: v.Preview,
		Filename:    up.Filename,
	})
}

// handleImport validates the uploaded file again and commits it.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	up, err := s.readUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, "Data import failed")
		return
	}

	result, err := s.service.Import(r.Context(), up.Entity, up.Data)
	var rejected *core.ValidationFailedError
	switch {
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadRequest, RejectedResponse{
			Error:      "Data validation failed",
			Validation: rejected.Result,
		})
	case err != nil:
		s.respondError(w, r, err, "Data import failed")
	default:
		writeJSON(w, http.StatusOK, ImportResponse{
			Success: true,
			Message: result.Message,
			Result:  result,
		})
	}
}

// handleHistory lists past imports.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": s.service.History(r.Context()),
	})
}

// handleHealth pings the store and reports pipeline slots.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{"status": "ok", "database": "ok"}
	status := http.StatusOK
	if err := s.service.Ping(ctx); err != nil {
		body["status"] = "degraded"
		body["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if ls, ok := s.service.LimiterStatus(); ok {
		body["imports"] = ls
	}
	writeJSON(w, status, body)
}
