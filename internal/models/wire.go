// Package models defines wire shapes for questions rendered to a caller.
package models

import "time"

// QuestionView is the stable projection of a question sent to callers.
// Field names are part of the API contract.
type QuestionView struct {
	FieldID           string    `json:"field_id"`
	Label             string    `json:"label"`
	InputType         InputType `json:"input_type"`
	Options           []string  `json:"options,omitempty"`
	Required          bool      `json:"required"`
	HelpText          string    `json:"help_text,omitempty"`
	Placeholder       string    `json:"placeholder,omitempty"`
	CurrentValue      any       `json:"current_value"`
	Suggestion        string    `json:"suggestion,omitempty"`
	ValidationPattern string    `json:"validation_pattern,omitempty"`
	PhaseName         string    `json:"phase_name,omitempty"`
}

// Progress reports where the caller is in the question flow. Totals are
// dynamic: triggered conditional branches grow the denominator.
type Progress struct {
	CurrentStep     int     `json:"current_step"`
	TotalSteps      int     `json:"total_steps"`
	PercentComplete float64 `json:"percent_complete"`
	PhaseName       string  `json:"phase_name,omitempty"`
}

// FieldError is a single per-field validation finding. Severity is either
// "error" (blocking) or "warning" (never blocking).
type FieldError struct {
	Field    string `json:"field"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ValidationResult aggregates per-field findings for one submission.
// The result is invalid iff Errors is non-empty.
type ValidationResult struct {
	IsValid  bool         `json:"is_valid"`
	Errors   []FieldError `json:"errors"`
	Warnings []FieldError `json:"warnings"`
}

// StartSessionRequest starts a new document generation session.
type StartSessionRequest struct {
	TemplateName string `json:"template_name"`
}

// Validate validates a StartSessionRequest.
func (r *StartSessionRequest) Validate() error {
	if r.TemplateName == "" {
		return ErrEmptyTemplateName
	}
	return nil
}

// StartSessionResponse is returned when a session is created.
type StartSessionResponse struct {
	SessionID        string         `json:"session_id"`
	TemplateName     string         `json:"template_name"`
	WelcomeMessage   string         `json:"welcome_message"`
	CurrentQuestions []QuestionView `json:"current_questions"`
	Progress         Progress       `json:"progress"`
	Status           SessionStatus  `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// SubmitAnswersRequest submits answers keyed by field_id.
type SubmitAnswersRequest struct {
	Answers map[string]any `json:"answers"`
}

// Validate validates a SubmitAnswersRequest.
func (r *SubmitAnswersRequest) Validate() error {
	if len(r.Answers) == 0 {
		return ErrEmptyAnswers
	}
	return nil
}

// SubmitAnswersResponse is returned after an answer submission.
type SubmitAnswersResponse struct {
	SessionID        string         `json:"session_id"`
	ValidationPassed bool           `json:"validation_passed"`
	Errors           []FieldError   `json:"errors"`
	Warnings         []FieldError   `json:"warnings"`
	NextQuestions    []QuestionView `json:"next_questions"`
	Progress         Progress       `json:"progress"`
	IsComplete       bool           `json:"is_complete"`
	Status           SessionStatus  `json:"status"`
}

// SessionStateResponse is the full state of a session.
type SessionStateResponse struct {
	SessionID     string         `json:"session_id"`
	TemplateName  string         `json:"template_name"`
	Status        SessionStatus  `json:"status"`
	AnsweredIDs   []string       `json:"answered_question_ids"`
	CollectedData map[string]any `json:"collected_data"`
	Progress      Progress       `json:"progress"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
}

// GenerateDocumentRequest requests rendering of the filled template.
type GenerateDocumentRequest struct {
	Format string `json:"format"` // pdf or docx
}

// Validate validates a GenerateDocumentRequest.
func (r *GenerateDocumentRequest) Validate() error {
	if r.Format != "pdf" && r.Format != "docx" {
		return ErrUnsupportedFormat
	}
	return nil
}

// GenerateDocumentResponse is returned after a successful generation.
type GenerateDocumentResponse struct {
	DocumentID    string    `json:"document_id"`
	SessionID     string    `json:"session_id"`
	BlobPath      string    `json:"blob_path"`
	FileFormat    string    `json:"file_format"`
	FileSizeBytes int       `json:"file_size_bytes"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// API response envelope

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusCreated indicates data was successfully created via API.
	APIStatusCreated APIStatus = "created"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result any) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result any) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and result data.
func SuccessWithMessage(message string, result any) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Created creates a created API response with optional result data.
func Created(result any) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusCreated).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}
