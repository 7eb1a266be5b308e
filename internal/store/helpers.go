package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/docpipe/docpipe/internal/models"
)

// sessionColumns is the column list shared by both SQL backends. Scan order
// in scanSessionRow must match.
const sessionColumns = `session_id, template_name, execution_plan, answered_question_ids, collected_data, current_sequence_number, status, created_at, updated_at, expires_at`

// encodeSessionJSON marshals the JSON-typed session columns. The execution
// plan column is nullable; the other two default to their empty collections.
func encodeSessionJSON(sess *models.Session) (plan interface{}, answered, collected string, err error) {
	if sess.Plan != nil {
		raw, merr := json.Marshal(sess.Plan)
		if merr != nil {
			return nil, "", "", fmt.Errorf("failed to marshal execution plan for session %s: %w", sess.SessionID, merr)
		}
		plan = string(raw)
	}
	answeredIDs := sess.AnsweredQuestionIDs
	if answeredIDs == nil {
		answeredIDs = []string{}
	}
	rawAnswered, merr := json.Marshal(answeredIDs)
	if merr != nil {
		return nil, "", "", fmt.Errorf("failed to marshal answered question ids for session %s: %w", sess.SessionID, merr)
	}
	data := sess.CollectedData
	if data == nil {
		data = map[string]any{}
	}
	rawCollected, merr := json.Marshal(data)
	if merr != nil {
		return nil, "", "", fmt.Errorf("failed to marshal collected data for session %s: %w", sess.SessionID, merr)
	}
	return plan, string(rawAnswered), string(rawCollected), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanSessionRow.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanSessionRow scans a session from a row selected with sessionColumns.
func scanSessionRow(row rowScanner) (*models.Session, error) {
	var sess models.Session
	var planJSON sql.NullString
	var answeredJSON, collectedJSON string
	var expiresAt sql.NullTime
	err := row.Scan(
		&sess.SessionID, &sess.TemplateName, &planJSON, &answeredJSON, &collectedJSON,
		&sess.CurrentSequenceNumber, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if planJSON.Valid && planJSON.String != "" {
		var plan models.ExecutionPlan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution plan for session %s: %w", sess.SessionID, err)
		}
		sess.Plan = &plan
	}
	if err := json.Unmarshal([]byte(answeredJSON), &sess.AnsweredQuestionIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answered question ids for session %s: %w", sess.SessionID, err)
	}
	if err := json.Unmarshal([]byte(collectedJSON), &sess.CollectedData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collected data for session %s: %w", sess.SessionID, err)
	}
	if expiresAt.Valid {
		sess.ExpiresAt = expiresAt.Time
	}
	return &sess, nil
}

// scanTemplateRow scans a template from a row selected with templateColumns.
const templateColumns = `id, name, description, version, template_blob_path, prompt_blob_path, is_active, created_at, updated_at`

func scanTemplateRow(row rowScanner) (*models.DocumentTemplate, error) {
	var t models.DocumentTemplate
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.Version, &t.TemplateBlobPath, &t.PromptBlobPath,
		&t.IsActive, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// nullableTime converts a zero time into nil for nullable columns.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
