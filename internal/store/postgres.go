// Package store provides storage backends for docpipe.
//
// This file implements a PostgreSQL-backed store for templates, sessions and
// generated documents.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/docpipe/docpipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveTemplate(t models.DocumentTemplate) error {
	_, err := s.db.Exec(`
		INSERT INTO docpipe_templates (name, description, version, template_blob_path, prompt_blob_path, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			template_blob_path = EXCLUDED.template_blob_path,
			prompt_blob_path = EXCLUDED.prompt_blob_path,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at`,
		t.Name, t.Description, t.Version, t.TemplateBlobPath, t.PromptBlobPath, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveTemplate failed", "error", err, "name", t.Name)
		return fmt.Errorf("failed to save template %s: %w", t.Name, err)
	}
	slog.Debug("PostgresStore SaveTemplate succeeded", "name", t.Name, "version", t.Version)
	return nil
}

func (s *PostgresStore) GetTemplateByName(name string) (*models.DocumentTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM docpipe_templates WHERE name = $1`, name)
	t, err := scanTemplateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetTemplateByName failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to get template %s: %w", name, err)
	}
	return t, nil
}

func (s *PostgresStore) ListActiveTemplates() ([]models.DocumentTemplate, error) {
	rows, err := s.db.Query(`SELECT ` + templateColumns + ` FROM docpipe_templates WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		slog.Error("PostgresStore ListActiveTemplates query failed", "error", err)
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []models.DocumentTemplate
	for rows.Next() {
		t, err := scanTemplateRow(rows)
		if err != nil {
			slog.Error("PostgresStore ListActiveTemplates scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListActiveTemplates rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate template rows: %w", err)
	}
	slog.Debug("PostgresStore ListActiveTemplates succeeded", "count", len(templates))
	return templates, nil
}

func (s *PostgresStore) CreateSession(sess models.Session) error {
	plan, answered, collected, err := encodeSessionJSON(&sess)
	if err != nil {
		slog.Error("PostgresStore CreateSession encode failed", "error", err, "sessionID", sess.SessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO docpipe_sessions (session_id, template_name, execution_plan, answered_question_ids, collected_data, current_sequence_number, status, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		sess.SessionID, sess.TemplateName, plan, answered, collected,
		sess.CurrentSequenceNumber, sess.Status, sess.CreatedAt, sess.UpdatedAt, nullableTime(sess.ExpiresAt))
	if err != nil {
		slog.Error("PostgresStore CreateSession failed", "error", err, "sessionID", sess.SessionID)
		return fmt.Errorf("failed to insert session %s: %w", sess.SessionID, err)
	}
	slog.Debug("PostgresStore CreateSession succeeded", "sessionID", sess.SessionID, "template", sess.TemplateName)
	return nil
}

func (s *PostgresStore) GetSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM docpipe_sessions WHERE session_id = $1`, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sess, nil
}

// UpdateSession performs a read-modify-write inside a transaction using
// SELECT ... FOR UPDATE, so concurrent submissions against the same session
// are serialized by the row lock. Nothing is persisted when mutate returns
// an error.
func (s *PostgresStore) UpdateSession(sessionID string, mutate func(*models.Session) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("PostgresStore UpdateSession begin failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+sessionColumns+` FROM docpipe_sessions WHERE session_id = $1 FOR UPDATE`, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("PostgresStore UpdateSession scan failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	if err := mutate(sess); err != nil {
		return err
	}

	plan, answered, collected, err := encodeSessionJSON(sess)
	if err != nil {
		slog.Error("PostgresStore UpdateSession encode failed", "error", err, "sessionID", sessionID)
		return err
	}
	_, err = tx.Exec(`
		UPDATE docpipe_sessions
		SET execution_plan = $1, answered_question_ids = $2, collected_data = $3,
			current_sequence_number = $4, status = $5, updated_at = $6, expires_at = $7
		WHERE session_id = $8`,
		plan, answered, collected, sess.CurrentSequenceNumber, sess.Status,
		sess.UpdatedAt, nullableTime(sess.ExpiresAt), sessionID)
	if err != nil {
		slog.Error("PostgresStore UpdateSession write failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("PostgresStore UpdateSession commit failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to commit session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore UpdateSession succeeded", "sessionID", sessionID, "status", sess.Status)
	return nil
}

func (s *PostgresStore) DeleteExpiredSessions(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM docpipe_sessions WHERE expires_at IS NOT NULL AND expires_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore DeleteExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("PostgresStore DeleteExpiredSessions succeeded", "removed", n)
	return int(n), nil
}

func (s *PostgresStore) AddGeneratedDocument(d models.GeneratedDocument) error {
	_, err := s.db.Exec(`
		INSERT INTO docpipe_documents (document_id, session_id, blob_path, file_format, file_size_bytes, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.DocumentID, d.SessionID, d.BlobPath, d.FileFormat, d.FileSizeBytes, d.GeneratedAt)
	if err != nil {
		slog.Error("PostgresStore AddGeneratedDocument failed", "error", err, "documentID", d.DocumentID)
		return fmt.Errorf("failed to insert document %s: %w", d.DocumentID, err)
	}
	slog.Debug("PostgresStore AddGeneratedDocument succeeded", "documentID", d.DocumentID, "sessionID", d.SessionID)
	return nil
}

func (s *PostgresStore) ListGeneratedDocuments(sessionID string) ([]models.GeneratedDocument, error) {
	rows, err := s.db.Query(`
		SELECT document_id, session_id, blob_path, file_format, file_size_bytes, generated_at
		FROM docpipe_documents WHERE session_id = $1 ORDER BY generated_at`, sessionID)
	if err != nil {
		slog.Error("PostgresStore ListGeneratedDocuments query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query documents for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var docs []models.GeneratedDocument
	for rows.Next() {
		var d models.GeneratedDocument
		if err := rows.Scan(&d.DocumentID, &d.SessionID, &d.BlobPath, &d.FileFormat, &d.FileSizeBytes, &d.GeneratedAt); err != nil {
			slog.Error("PostgresStore ListGeneratedDocuments scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListGeneratedDocuments rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}
	slog.Debug("PostgresStore ListGeneratedDocuments succeeded", "sessionID", sessionID, "count", len(docs))
	return docs, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
