package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docpipe/docpipe/internal/models"
	"github.com/docpipe/docpipe/internal/testutil"
)

// envelope mirrors the API response wrapper with a raw result for re-decoding.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func doRequest(t *testing.T, handler http.Handler, method, url string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, method, url, body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var env envelope
	if rr.Body.Len() > 0 {
		testutil.MustUnmarshalJSON(t, rr.Body.Bytes(), &env)
	}
	return rr, env
}

func uploadSampleTemplate(t *testing.T, handler http.Handler) {
	t.Helper()
	rr, _ := doRequest(t, handler, http.MethodPost, "/templates", models.TemplateUpload{
		Name:         "loan_agreement",
		Description:  "Standard loan agreement",
		Template:     json.RawMessage(`{"title": "[title]", "sections": []}`),
		PromptConfig: json.RawMessage(`{"questions": ["guarantor", "email"]}`),
	})
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "upload template")
}

func startSession(t *testing.T, handler http.Handler) models.StartSessionResponse {
	t.Helper()
	rr, env := doRequest(t, handler, http.MethodPost, "/sessions/start", models.StartSessionRequest{TemplateName: "loan_agreement"})
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "start session")
	var resp models.StartSessionResponse
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)

	rr, env := doRequest(t, server.Handler(), http.MethodGet, "/health", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	if env.Status != "ok" || env.Message != "ok" {
		t.Errorf("unexpected health response: %+v", env)
	}

	rr, _ = doRequest(t, server.Handler(), http.MethodPost, "/health", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "health POST")
}

func TestTemplateUploadAndFetch(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr, env := doRequest(t, handler, http.MethodGet, "/templates", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list empty")
	var templates []models.DocumentTemplate
	testutil.MustUnmarshalJSON(t, env.Result, &templates)
	if len(templates) != 0 {
		t.Errorf("expected empty template list, got %+v", templates)
	}

	uploadSampleTemplate(t, handler)

	rr, env = doRequest(t, handler, http.MethodGet, "/templates", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list")
	testutil.MustUnmarshalJSON(t, env.Result, &templates)
	if len(templates) != 1 || templates[0].Name != "loan_agreement" {
		t.Fatalf("unexpected template list: %+v", templates)
	}
	if templates[0].TemplateBlobPath != "templates/loan_agreement/template.json" {
		t.Errorf("unexpected blob path: %s", templates[0].TemplateBlobPath)
	}

	rr, env = doRequest(t, handler, http.MethodGet, "/templates/loan_agreement", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get by name")
	var tpl models.DocumentTemplate
	testutil.MustUnmarshalJSON(t, env.Result, &tpl)
	if tpl.Name != "loan_agreement" || !tpl.IsActive || tpl.Version != "1.0" {
		t.Errorf("unexpected template: %+v", tpl)
	}

	var missEnv envelope
	rr, missEnv = doRequest(t, handler, http.MethodGet, "/templates/missing", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get missing")
	if missEnv.Message != models.ErrTemplateNotFound.Error() {
		t.Errorf("unexpected missing-template message: %q", missEnv.Message)
	}

	rr, _ = doRequest(t, handler, http.MethodPut, "/templates", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "PUT not allowed")
}

func TestTemplateUploadRejectsBadPayloads(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr, _ := doRequest(t, handler, http.MethodPost, "/templates", models.TemplateUpload{
		Template:     json.RawMessage(`{}`),
		PromptConfig: json.RawMessage(`{}`),
	})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing name")

	body := testutil.MustMarshalJSON(t, map[string]any{"name": "broken", "template": map[string]any{}})
	req := httptest.NewRequest(http.MethodPost, "/templates", bytes.NewReader(body))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing prompt_config")
	testutil.AssertJSONResponse(t, rr, string(models.APIStatusError))

	req = httptest.NewRequest(http.MethodPost, "/templates", strings.NewReader(`{"name": "broken",`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "malformed JSON body")
}

func TestStartSession(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()
	uploadSampleTemplate(t, handler)

	resp := startSession(t, handler)
	if resp.SessionID == "" {
		t.Fatal("missing session id")
	}
	if resp.Status != models.SessionStatusInProgress {
		t.Errorf("status = %s", resp.Status)
	}
	if len(resp.CurrentQuestions) != 1 || resp.CurrentQuestions[0].FieldID != "has_guarantor" {
		t.Errorf("unexpected opening questions: %+v", resp.CurrentQuestions)
	}
	if resp.Progress.CurrentStep != 1 || resp.Progress.TotalSteps != 2 {
		t.Errorf("unexpected progress: %+v", resp.Progress)
	}
	if !strings.Contains(resp.WelcomeMessage, "loan agreement") {
		t.Errorf("unexpected welcome message: %q", resp.WelcomeMessage)
	}
}

func TestStartSessionErrors(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr, env := doRequest(t, handler, http.MethodPost, "/sessions/start", models.StartSessionRequest{TemplateName: "missing"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown template")
	if env.Message != models.ErrTemplateNotFound.Error() {
		t.Errorf("unexpected missing-template message: %q", env.Message)
	}

	rr, _ = doRequest(t, handler, http.MethodPost, "/sessions/start", models.StartSessionRequest{})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty template name")

	rr, _ = doRequest(t, handler, http.MethodGet, "/sessions/start", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET not allowed")
}

func TestSubmitAnswersFlow(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()
	uploadSampleTemplate(t, handler)
	session := startSession(t, handler)

	// Answering yes opens the guarantor branch and grows the total.
	rr, env := doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/submit",
		models.SubmitAnswersRequest{Answers: map[string]any{"has_guarantor": "yes"}})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit guarantor answer")
	var resp models.SubmitAnswersResponse
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	if !resp.ValidationPassed || resp.IsComplete {
		t.Errorf("unexpected submit result: %+v", resp)
	}
	if len(resp.NextQuestions) != 1 || resp.NextQuestions[0].FieldID != "guarantor_name" {
		t.Errorf("expected the conditional question next, got %+v", resp.NextQuestions)
	}
	if resp.Progress.TotalSteps != 3 || resp.Progress.CurrentStep != 2 {
		t.Errorf("unexpected progress after branch opened: %+v", resp.Progress)
	}

	// An invalid email is reported per field and changes nothing.
	rr, env = doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/submit",
		models.SubmitAnswersRequest{Answers: map[string]any{"client_email": "not-an-email"}})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit invalid email")
	testutil.MustUnmarshalJSON(t, env.Result, &resp)
	if resp.ValidationPassed {
		t.Fatal("expected validation failure")
	}
	if len(resp.Errors) != 1 || resp.Errors[0].Field != "client_email" {
		t.Errorf("unexpected validation errors: %+v", resp.Errors)
	}

	// Session state reflects only the accepted answer.
	rr, env = doRequest(t, handler, http.MethodGet, "/sessions/"+session.SessionID, nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")
	var state models.SessionStateResponse
	testutil.MustUnmarshalJSON(t, env.Result, &state)
	if len(state.AnsweredIDs) != 1 || state.AnsweredIDs[0] != "has_guarantor" {
		t.Errorf("unexpected answered ids: %+v", state.AnsweredIDs)
	}
	if state.CollectedData["has_guarantor"] != "yes" {
		t.Errorf("unexpected collected data: %+v", state.CollectedData)
	}
}

func TestSubmitAnswersErrors(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr, _ := doRequest(t, handler, http.MethodPost, "/sessions/nope/submit",
		models.SubmitAnswersRequest{Answers: map[string]any{"x": "y"}})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown session")

	uploadSampleTemplate(t, handler)
	session := startSession(t, handler)

	rr, _ = doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/submit",
		models.SubmitAnswersRequest{})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty answers")

	rr, _ = doRequest(t, handler, http.MethodGet, "/sessions/"+session.SessionID+"/submit", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET not allowed")
}

func TestGenerateDocumentHappyPath(t *testing.T) {
	server, _, blobs := testutil.NewTestServer(t)
	handler := server.Handler()
	uploadSampleTemplate(t, handler)
	session := startSession(t, handler)

	// Answer everything in one submission; no guarantor keeps the base total.
	rr, env := doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/submit",
		models.SubmitAnswersRequest{Answers: map[string]any{
			"has_guarantor": "no",
			"client_email":  "dana@example.com",
		}})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit all answers")
	var submit models.SubmitAnswersResponse
	testutil.MustUnmarshalJSON(t, env.Result, &submit)
	if !submit.IsComplete || submit.Status != models.SessionStatusReadyForGeneration {
		t.Fatalf("expected session ready for generation, got %+v", submit)
	}

	rr, env = doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/generate",
		models.GenerateDocumentRequest{Format: "docx"})
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "generate document")
	var gen models.GenerateDocumentResponse
	testutil.MustUnmarshalJSON(t, env.Result, &gen)
	if gen.DocumentID == "" || gen.FileFormat != "docx" || gen.FileSizeBytes == 0 {
		t.Errorf("unexpected generation response: %+v", gen)
	}

	// The rendered file landed in blob storage.
	data, err := blobs.Load(context.Background(), gen.BlobPath)
	if err != nil {
		t.Fatalf("document blob missing: %v", err)
	}
	if len(data) != gen.FileSizeBytes {
		t.Errorf("blob size = %d, want %d", len(data), gen.FileSizeBytes)
	}

	rr, env = doRequest(t, handler, http.MethodGet, "/sessions/"+session.SessionID+"/documents", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list documents")
	var docs []models.GeneratedDocument
	testutil.MustUnmarshalJSON(t, env.Result, &docs)
	if len(docs) != 1 || docs[0].DocumentID != gen.DocumentID {
		t.Errorf("unexpected document list: %+v", docs)
	}

	// Generation is terminal: the session is completed and further
	// submissions are rejected.
	rr, env = doRequest(t, handler, http.MethodGet, "/sessions/"+session.SessionID, nil)
	var state models.SessionStateResponse
	testutil.MustUnmarshalJSON(t, env.Result, &state)
	if state.Status != models.SessionStatusCompleted {
		t.Errorf("session status = %s, want completed", state.Status)
	}
	rr, _ = doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/submit",
		models.SubmitAnswersRequest{Answers: map[string]any{"client_email": "other@example.com"}})
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "submit after completion")
}

func TestGenerateDocumentErrors(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()
	uploadSampleTemplate(t, handler)
	session := startSession(t, handler)

	// Not ready yet.
	rr, _ := doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/generate",
		models.GenerateDocumentRequest{Format: "docx"})
	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "generate before ready")

	// PDF is recognized but not supported.
	rr, env := doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/generate",
		models.GenerateDocumentRequest{Format: "pdf"})
	testutil.AssertHTTPStatus(t, http.StatusUnprocessableEntity, rr.Code, "generate pdf")
	if !strings.Contains(env.Message, "not supported") {
		t.Errorf("unexpected pdf error message: %q", env.Message)
	}

	rr, _ = doRequest(t, handler, http.MethodPost, "/sessions/"+session.SessionID+"/generate",
		models.GenerateDocumentRequest{Format: "odt"})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "unknown format")

	rr, _ = doRequest(t, handler, http.MethodPost, "/sessions/nope/generate",
		models.GenerateDocumentRequest{Format: "docx"})
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown session")
}

func TestSessionSubresourceRouting(t *testing.T) {
	server, _, _ := testutil.NewTestServer(t)
	handler := server.Handler()

	rr, _ := doRequest(t, handler, http.MethodGet, "/sessions/", nil)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "missing session id")

	rr, _ = doRequest(t, handler, http.MethodGet, "/sessions/abc/unknown", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown subresource")

	rr, _ = doRequest(t, handler, http.MethodGet, "/sessions/abc", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown session")

	rr, _ = doRequest(t, handler, http.MethodGet, "/sessions/abc/documents", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "documents of unknown session")
}
