// Package api provides HTTP handlers for docpipe endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/docpipe/docpipe/internal/blob"
	"github.com/docpipe/docpipe/internal/models"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}

// templatesHandler serves GET /templates (list) and POST /templates (upload).
func (s *Server) templatesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	switch r.Method {
	case http.MethodGet:
		s.listTemplates(w, r)
	case http.MethodPost:
		s.uploadTemplate(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		slog.Warn("Server.templatesHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.store.ListActiveTemplates()
	if err != nil {
		slog.Error("Server.listTemplates: failed to list templates", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list templates"))
		return
	}
	if templates == nil {
		templates = []models.DocumentTemplate{}
	}
	slog.Debug("Server.listTemplates: templates listed", "count", len(templates))
	writeJSONResponse(w, http.StatusOK, models.Success(templates))
}

func (s *Server) uploadTemplate(w http.ResponseWriter, r *http.Request) {
	var upload models.TemplateUpload
	if err := json.NewDecoder(r.Body).Decode(&upload); err != nil {
		slog.Warn("Server.uploadTemplate: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := upload.Validate(); err != nil {
		slog.Warn("Server.uploadTemplate: validation failed", "error", err, "name", upload.Name)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if !json.Valid(upload.Template) || !json.Valid(upload.PromptConfig) {
		slog.Warn("Server.uploadTemplate: template or prompt_config is not valid JSON", "name", upload.Name)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("template and prompt_config must be valid JSON"))
		return
	}

	ctx := r.Context()
	templatePath := blob.TemplatePath(upload.Name)
	promptPath := blob.PromptConfigPath(upload.Name)
	if err := s.blobs.Save(ctx, templatePath, upload.Template); err != nil {
		slog.Error("Server.uploadTemplate: failed to store template blob", "error", err, "name", upload.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store template"))
		return
	}
	if err := s.blobs.Save(ctx, promptPath, upload.PromptConfig); err != nil {
		slog.Error("Server.uploadTemplate: failed to store prompt config blob", "error", err, "name", upload.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store prompt configuration"))
		return
	}

	version := upload.Version
	if version == "" {
		version = "1.0"
	}
	now := time.Now()
	tpl := models.DocumentTemplate{
		Name:             upload.Name,
		Description:      upload.Description,
		Version:          version,
		TemplateBlobPath: templatePath,
		PromptBlobPath:   promptPath,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.SaveTemplate(tpl); err != nil {
		slog.Error("Server.uploadTemplate: failed to save template record", "error", err, "name", upload.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save template"))
		return
	}

	slog.Info("Server.uploadTemplate: template registered", "name", upload.Name, "version", version)
	writeJSONResponse(w, http.StatusCreated, models.Created(tpl))
}

// templateByNameHandler serves GET /templates/{name}.
func (s *Server) templateByNameHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		slog.Warn("Server.templateByNameHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/templates/")
	if name == "" || strings.Contains(name, "/") {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid template name"))
		return
	}
	tpl, err := s.store.GetTemplateByName(name)
	if err != nil {
		slog.Error("Server.templateByNameHandler: failed to get template", "error", err, "name", name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get template"))
		return
	}
	if tpl == nil || !tpl.IsActive {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrTemplateNotFound.Error()))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(tpl))
}
