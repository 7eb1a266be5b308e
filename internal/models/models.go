// Package models defines the core data structures for DocPipe.
package models

import (
	"encoding/json"
	"errors"
	"time"
)

// SessionStatus represents the lifecycle state of a data-collection session.
type SessionStatus string

const (
	// SessionStatusInProgress indicates data collection is still under way.
	SessionStatusInProgress SessionStatus = "in_progress"
	// SessionStatusReadyForGeneration indicates all currently required
	// questions are answered and a document may be generated.
	SessionStatusReadyForGeneration SessionStatus = "ready_for_generation"
	// SessionStatusCompleted indicates a document has been generated.
	// This state is terminal; no further answer submissions are accepted.
	SessionStatusCompleted SessionStatus = "completed"
)

// IsValidSessionStatus checks if the given session status is supported.
func IsValidSessionStatus(s SessionStatus) bool {
	switch s {
	case SessionStatusInProgress, SessionStatusReadyForGeneration, SessionStatusCompleted:
		return true
	default:
		return false
	}
}

// SessionTTL is how long a session remains valid after creation. Expiry is
// advisory metadata; it is not enforced as a hard state transition.
const SessionTTL = 24 * time.Hour

// Error variables for session and generation state handling
var (
	ErrSessionCompleted    = errors.New("session is already completed")
	ErrSessionNotReady     = errors.New("data collection not complete")
	ErrSessionNotFound     = errors.New("session not found")
	ErrTemplateNotFound    = errors.New("template not found")
	ErrMissingPlan         = errors.New("session execution plan not found")
	ErrUnsupportedFormat   = errors.New("format must be 'pdf' or 'docx'")
	ErrEmptyAnswers        = errors.New("answers cannot be empty")
	ErrEmptyTemplateName   = errors.New("template_name is required")
)

// Session tracks one user's conversational data-collection state. The
// execution plan is set once at creation; answered ids and collected data
// are mutated only by successful answer submissions.
type Session struct {
	SessionID             string         `json:"session_id"`
	TemplateName          string         `json:"template_name"`
	Plan                  *ExecutionPlan `json:"execution_plan"`
	AnsweredQuestionIDs   []string       `json:"answered_question_ids"`
	CollectedData         map[string]any `json:"collected_data"`
	CurrentSequenceNumber int            `json:"current_sequence_number"`
	Status                SessionStatus  `json:"status"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	ExpiresAt             time.Time      `json:"expires_at"`
}

// HasAnswered reports whether the given question id has an accepted answer.
func (s *Session) HasAnswered(questionID string) bool {
	for _, id := range s.AnsweredQuestionIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

// Expired reports whether the session's advisory TTL has elapsed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// DocumentTemplate stores template metadata. The template JSON and prompt
// configuration JSON live in blob storage; this record tracks their paths.
type DocumentTemplate struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description,omitempty"`
	Version          string    `json:"version"`
	TemplateBlobPath string    `json:"template_blob_path"`
	PromptBlobPath   string    `json:"prompt_blob_path"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// GeneratedDocument is an append-only record of one successful generation.
type GeneratedDocument struct {
	DocumentID    string    `json:"document_id"`
	SessionID     string    `json:"session_id"`
	BlobPath      string    `json:"blob_path"`
	FileFormat    string    `json:"file_format"` // pdf or docx
	FileSizeBytes int       `json:"file_size_bytes"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// TemplateUpload is the admin payload for registering a new template.
type TemplateUpload struct {
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Version      string          `json:"version,omitempty"`
	Template     json.RawMessage `json:"template"`
	PromptConfig json.RawMessage `json:"prompt_config"`
}

// Validate validates a TemplateUpload payload.
func (u *TemplateUpload) Validate() error {
	if u.Name == "" {
		return errors.New("name is required")
	}
	if len(u.Template) == 0 {
		return errors.New("template is required")
	}
	if len(u.PromptConfig) == 0 {
		return errors.New("prompt_config is required")
	}
	return nil
}
