package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestIsValidSessionStatus(t *testing.T) {
	for _, s := range []SessionStatus{SessionStatusInProgress, SessionStatusReadyForGeneration, SessionStatusCompleted} {
		if !IsValidSessionStatus(s) {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if IsValidSessionStatus("archived") {
		t.Error("unexpected status accepted")
	}
}

func TestSessionHasAnswered(t *testing.T) {
	s := Session{AnsweredQuestionIDs: []string{"a", "b"}}
	if !s.HasAnswered("a") || s.HasAnswered("c") {
		t.Error("HasAnswered mismatch")
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Hour)}
	if s.Expired(now) {
		t.Error("future expiry should not be expired")
	}
	if !s.Expired(now.Add(2 * time.Hour)) {
		t.Error("past expiry should be expired")
	}
}

func TestTemplateUploadValidate(t *testing.T) {
	valid := TemplateUpload{
		Name:         "loan_agreement",
		Template:     json.RawMessage(`{"title":"Loan"}`),
		PromptConfig: json.RawMessage(`{"questions":[]}`),
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid upload, got %v", err)
	}

	missing := valid
	missing.Name = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing name")
	}
	missing = valid
	missing.Template = nil
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing template")
	}
	missing = valid
	missing.PromptConfig = nil
	if err := missing.Validate(); err == nil {
		t.Error("expected error for missing prompt_config")
	}
}

func TestStartSessionRequestValidate(t *testing.T) {
	r := StartSessionRequest{}
	if err := r.Validate(); !errors.Is(err, ErrEmptyTemplateName) {
		t.Errorf("expected ErrEmptyTemplateName, got %v", err)
	}
	r.TemplateName = "loan_agreement"
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

func TestSubmitAnswersRequestValidate(t *testing.T) {
	r := SubmitAnswersRequest{}
	if err := r.Validate(); !errors.Is(err, ErrEmptyAnswers) {
		t.Errorf("expected ErrEmptyAnswers, got %v", err)
	}
	r.Answers = map[string]any{"a": "b"}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}
}

func TestGenerateDocumentRequestValidate(t *testing.T) {
	for _, format := range []string{"pdf", "docx"} {
		r := GenerateDocumentRequest{Format: format}
		if err := r.Validate(); err != nil {
			t.Errorf("expected %s to validate, got %v", format, err)
		}
	}
	r := GenerateDocumentRequest{Format: "odt"}
	if err := r.Validate(); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]string{"k": "v"})
	if resp.Status != string(APIStatusOK) || resp.Result == nil {
		t.Errorf("unexpected success response: %+v", resp)
	}

	resp = SuccessWithMessage("done", nil)
	if resp.Status != string(APIStatusOK) || resp.Message != "done" {
		t.Errorf("unexpected response: %+v", resp)
	}

	resp = Created("thing")
	if resp.Status != string(APIStatusCreated) {
		t.Errorf("unexpected created response: %+v", resp)
	}

	resp = Error("boom")
	if resp.Status != string(APIStatusError) || resp.Message != "boom" {
		t.Errorf("unexpected error response: %+v", resp)
	}

	resp = NewAPIResponseBuilder().WithStatus(APIStatusOK).WithMessage("hi").WithResult(42).Build()
	if resp.Status != string(APIStatusOK) || resp.Message != "hi" || resp.Result != 42 {
		t.Errorf("unexpected built response: %+v", resp)
	}
}
