// Package testutil provides common test utilities and helpers for docpipe tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/docpipe/docpipe/internal/api"
	"github.com/docpipe/docpipe/internal/blob"
	"github.com/docpipe/docpipe/internal/flow"
	"github.com/docpipe/docpipe/internal/models"
	"github.com/docpipe/docpipe/internal/store"
)

// MockGenAI is a configurable in-memory genai.ClientInterface implementation.
// Unset hooks fall back to benign defaults: SamplePlan, an empty filled
// document, no suggestion, and a passing review.
type MockGenAI struct {
	InterpretPlanFn func(ctx context.Context, promptConfig, template json.RawMessage) (*models.ExecutionPlan, error)
	FillTemplateFn  func(ctx context.Context, template json.RawMessage, collected map[string]any) (json.RawMessage, error)
	SuggestAnswerFn func(ctx context.Context, question models.QuestionView, collected map[string]any) (string, error)
	ReviewAnswersFn func(ctx context.Context, rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (*models.ValidationResult, error)
}

func (m *MockGenAI) InterpretPlan(ctx context.Context, promptConfig, template json.RawMessage) (*models.ExecutionPlan, error) {
	if m.InterpretPlanFn != nil {
		return m.InterpretPlanFn(ctx, promptConfig, template)
	}
	return SamplePlan(), nil
}

func (m *MockGenAI) FillTemplate(ctx context.Context, template json.RawMessage, collected map[string]any) (json.RawMessage, error) {
	if m.FillTemplateFn != nil {
		return m.FillTemplateFn(ctx, template, collected)
	}
	filled := map[string]any{"title": "Test Document"}
	for k, v := range collected {
		filled[k] = v
	}
	return json.Marshal(filled)
}

func (m *MockGenAI) SuggestAnswer(ctx context.Context, question models.QuestionView, collected map[string]any) (string, error) {
	if m.SuggestAnswerFn != nil {
		return m.SuggestAnswerFn(ctx, question, collected)
	}
	return "", nil
}

func (m *MockGenAI) ReviewAnswers(ctx context.Context, rules models.ValidationRuleSet, answers, collected map[string]any, inScope []models.QuestionView) (*models.ValidationResult, error) {
	if m.ReviewAnswersFn != nil {
		return m.ReviewAnswersFn(ctx, rules, answers, collected, inScope)
	}
	return &models.ValidationResult{IsValid: true}, nil
}

// SamplePlan builds a small execution plan with two base questions and one
// conditional question triggered by has_guarantor = "yes".
func SamplePlan() *models.ExecutionPlan {
	return &models.ExecutionPlan{
		StructureAnalysis: models.StructureAnalysis{
			Type:                "sequential_questions",
			TotalQuestions:      2,
			HasConditionalLogic: true,
			Description:         "loan agreement",
		},
		QuestionSequence: []models.Question{
			{
				SequenceNumber:  1,
				QuestionID:      "has_guarantor",
				QuestionText:    "Does the loan have a guarantor?",
				InputType:       models.InputTypeSelect,
				Options:         []string{"yes", "no"},
				ValidationRules: []string{"required"},
				PhaseName:       "Parties",
			},
			{
				SequenceNumber:  2,
				QuestionID:      "client_email",
				QuestionText:    "What is the client's email address?",
				InputType:       models.InputTypeEmail,
				ValidationRules: []string{"required", "email"},
				PhaseName:       "Parties",
			},
		},
		ConditionalQuestions: []models.ConditionalQuestion{
			{
				Question: models.Question{
					SequenceNumber:  3,
					QuestionID:      "guarantor_name",
					QuestionText:    "What is the guarantor's full name?",
					InputType:       models.InputTypeText,
					ValidationRules: []string{"required"},
					PhaseName:       "Parties",
				},
				TriggeredByField: "has_guarantor",
				TriggerCondition: map[string]any{"has_guarantor": "yes"},
			},
		},
	}
}

// NewTestServer creates a test API server with in-memory dependencies and a
// filesystem blob store under a per-test temp directory.
func NewTestServer(t *testing.T) (*api.Server, store.Store, blob.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	blobs, err := blob.NewFSStore(blob.WithBaseDir(t.TempDir()))
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}
	engine := flow.NewEngine()
	server := api.NewServer(st, blobs, &MockGenAI{}, engine)
	return server, st, blobs
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
