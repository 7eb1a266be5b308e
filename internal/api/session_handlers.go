package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docpipe/docpipe/internal/blob"
	"github.com/docpipe/docpipe/internal/docgen"
	"github.com/docpipe/docpipe/internal/flow"
	"github.com/docpipe/docpipe/internal/models"
)

// startSessionHandler serves POST /sessions/start. It loads the template's
// prompt configuration, interprets it into an execution plan and creates the
// session with its opening questions.
func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.startSessionHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	tpl, err := s.store.GetTemplateByName(req.TemplateName)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to get template", "error", err, "template", req.TemplateName)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get template"))
		return
	}
	if tpl == nil || !tpl.IsActive {
		writeJSONResponse(w, http.StatusNotFound, models.Error(models.ErrTemplateNotFound.Error()))
		return
	}

	ctx := r.Context()
	promptConfig, err := s.blobs.Load(ctx, tpl.PromptBlobPath)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to load prompt config", "error", err, "template", tpl.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load template configuration"))
		return
	}
	template, err := s.blobs.Load(ctx, tpl.TemplateBlobPath)
	if err != nil {
		slog.Error("Server.startSessionHandler: failed to load template blob", "error", err, "template", tpl.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load template"))
		return
	}

	planCtx, cancel := context.WithTimeout(ctx, DefaultPlanTimeout)
	defer cancel()
	plan, err := s.gaClient.InterpretPlan(planCtx, promptConfig, template)
	if err != nil {
		slog.Error("Server.startSessionHandler: plan interpretation failed", "error", err, "template", tpl.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to interpret template configuration"))
		return
	}

	now := time.Now()
	session := models.Session{
		SessionID:           uuid.NewString(),
		TemplateName:        tpl.Name,
		Plan:                plan,
		AnsweredQuestionIDs: []string{},
		CollectedData:       map[string]any{},
		Status:              models.SessionStatusInProgress,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(models.SessionTTL),
	}
	if err := s.store.CreateSession(session); err != nil {
		slog.Error("Server.startSessionHandler: failed to create session", "error", err, "sessionID", session.SessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}

	questions, progress := s.engine.StartQuestions(ctx, &session)
	slog.Info("Server.startSessionHandler: session started",
		"sessionID", session.SessionID, "template", tpl.Name, "totalQuestions", progress.TotalSteps)

	resp := models.StartSessionResponse{
		SessionID:        session.SessionID,
		TemplateName:     tpl.Name,
		WelcomeMessage:   welcomeMessage(tpl, plan),
		CurrentQuestions: questions,
		Progress:         progress,
		Status:           session.Status,
		CreatedAt:        session.CreatedAt,
	}
	writeJSONResponse(w, http.StatusCreated, models.Created(resp))
}

// welcomeMessage composes the opening line shown to the user.
func welcomeMessage(tpl *models.DocumentTemplate, plan *models.ExecutionPlan) string {
	if plan.WelcomeMessage != "" {
		return plan.WelcomeMessage
	}
	subject := plan.StructureAnalysis.Description
	if subject == "" {
		subject = tpl.Name
	}
	return fmt.Sprintf("Let's prepare your %s. I'll walk you through the required information step by step.", subject)
}

// sessionSubresourceHandler dispatches /sessions/{id} and its subresources.
func (s *Server) sessionSubresourceHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	rest := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing session id"))
		return
	}
	sessionID := parts[0]

	switch {
	case len(parts) == 1:
		s.getSessionHandler(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "submit":
		s.submitAnswersHandler(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "generate":
		s.generateDocumentHandler(w, r, sessionID)
	case len(parts) == 2 && parts[1] == "documents":
		s.listDocumentsHandler(w, r, sessionID)
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

// getSessionHandler serves GET /sessions/{id}.
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.getSessionHandler: failed to get session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get session"))
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}

	progress := flow.Progress(session.Plan, session.AnsweredQuestionIDs, session.CollectedData, nil)
	resp := models.SessionStateResponse{
		SessionID:     session.SessionID,
		TemplateName:  session.TemplateName,
		Status:        session.Status,
		AnsweredIDs:   session.AnsweredQuestionIDs,
		CollectedData: session.CollectedData,
		Progress:      progress,
		CreatedAt:     session.CreatedAt,
		UpdatedAt:     session.UpdatedAt,
		ExpiresAt:     session.ExpiresAt,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// submitAnswersHandler serves POST /sessions/{id}/submit. The whole
// validate-merge-advance step runs inside the store's atomic update so
// concurrent submissions for the same session serialize cleanly.
func (s *Server) submitAnswersHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.SubmitAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.submitAnswersHandler: failed to decode JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	ctx := r.Context()
	var result *flow.SubmitResult
	err := s.store.UpdateSession(sessionID, func(session *models.Session) error {
		var submitErr error
		result, submitErr = s.engine.SubmitAnswers(ctx, session, req.Answers, nil)
		return submitErr
	})
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	case errors.Is(err, models.ErrSessionCompleted):
		writeJSONResponse(w, http.StatusConflict, models.Error("Session is already completed"))
		return
	case errors.Is(err, models.ErrMissingPlan):
		slog.Error("Server.submitAnswersHandler: session has no execution plan", "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Session has no execution plan"))
		return
	case err != nil:
		slog.Error("Server.submitAnswersHandler: failed to update session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process answers"))
		return
	}

	slog.Debug("Server.submitAnswersHandler: answers processed",
		"sessionID", sessionID, "passed", result.ValidationPassed, "complete", result.IsComplete)
	resp := models.SubmitAnswersResponse{
		SessionID:        sessionID,
		ValidationPassed: result.ValidationPassed,
		Errors:           result.Errors,
		Warnings:         result.Warnings,
		NextQuestions:    result.NextQuestions,
		Progress:         result.Progress,
		IsComplete:       result.IsComplete,
		Status:           result.Status,
	}
	writeJSONResponse(w, http.StatusOK, models.Success(resp))
}

// generateDocumentHandler serves POST /sessions/{id}/generate. It fills the
// template with the collected data, renders the requested format, stores the
// file and marks the session completed.
func (s *Server) generateDocumentHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req models.GenerateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.generateDocumentHandler: failed to decode JSON", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}
	if req.Format == docgen.FormatPDF {
		// Only DOCX rendering is implemented.
		writeJSONResponse(w, http.StatusUnprocessableEntity, models.Error(docgen.ErrPDFNotSupported.Error()))
		return
	}

	session, err := s.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.generateDocumentHandler: failed to get session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get session"))
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if session.Status == models.SessionStatusInProgress {
		writeJSONResponse(w, http.StatusConflict, models.Error(models.ErrSessionNotReady.Error()))
		return
	}

	tpl, err := s.store.GetTemplateByName(session.TemplateName)
	if err != nil || tpl == nil {
		slog.Error("Server.generateDocumentHandler: failed to get template", "error", err, "template", session.TemplateName)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get template"))
		return
	}

	ctx := r.Context()
	template, err := s.blobs.Load(ctx, tpl.TemplateBlobPath)
	if err != nil {
		slog.Error("Server.generateDocumentHandler: failed to load template blob", "error", err, "template", tpl.Name)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load template"))
		return
	}

	fillCtx, cancel := context.WithTimeout(ctx, DefaultFillTimeout)
	defer cancel()
	filled, err := s.gaClient.FillTemplate(fillCtx, template, session.CollectedData)
	if err != nil {
		slog.Error("Server.generateDocumentHandler: template filling failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to fill template"))
		return
	}

	fileBytes, err := docgen.Render(filled, req.Format)
	if err != nil {
		slog.Error("Server.generateDocumentHandler: rendering failed", "error", err, "sessionID", sessionID, "format", req.Format)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to render document"))
		return
	}

	generatedAt := time.Now()
	docPath := blob.DocumentPath(sessionID, generatedAt, req.Format)
	if err := s.blobs.Save(ctx, docPath, fileBytes); err != nil {
		slog.Error("Server.generateDocumentHandler: failed to store document", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to store document"))
		return
	}

	doc := models.GeneratedDocument{
		DocumentID:    uuid.NewString(),
		SessionID:     sessionID,
		BlobPath:      docPath,
		FileFormat:    req.Format,
		FileSizeBytes: len(fileBytes),
		GeneratedAt:   generatedAt,
	}
	if err := s.store.AddGeneratedDocument(doc); err != nil {
		slog.Error("Server.generateDocumentHandler: failed to record document", "error", err, "documentID", doc.DocumentID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record document"))
		return
	}

	err = s.store.UpdateSession(sessionID, func(sess *models.Session) error {
		sess.Status = models.SessionStatusCompleted
		sess.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		slog.Error("Server.generateDocumentHandler: failed to mark session completed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update session"))
		return
	}

	slog.Info("Server.generateDocumentHandler: document generated",
		"sessionID", sessionID, "documentID", doc.DocumentID, "format", req.Format, "size", doc.FileSizeBytes)
	resp := models.GenerateDocumentResponse{
		DocumentID:    doc.DocumentID,
		SessionID:     doc.SessionID,
		BlobPath:      doc.BlobPath,
		FileFormat:    doc.FileFormat,
		FileSizeBytes: doc.FileSizeBytes,
		GeneratedAt:   doc.GeneratedAt,
	}
	writeJSONResponse(w, http.StatusCreated, models.Created(resp))
}

// listDocumentsHandler serves GET /sessions/{id}/documents.
func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	session, err := s.store.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.listDocumentsHandler: failed to get session", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get session"))
		return
	}
	if session == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	docs, err := s.store.ListGeneratedDocuments(sessionID)
	if err != nil {
		slog.Error("Server.listDocumentsHandler: failed to list documents", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list documents"))
		return
	}
	if docs == nil {
		docs = []models.GeneratedDocument{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(docs))
}
