// Package store provides storage backends for docpipe.
//
// This file implements an SQLite-backed store for templates, sessions and
// generated documents.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	"github.com/docpipe/docpipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// immediateTxDSN appends _txlock=immediate so transactions take SQLite's
// write lock at BEGIN rather than at the first write. UpdateSession relies
// on this: two concurrent read-modify-write transactions must not both read
// the old row.
func immediateTxDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_txlock=immediate"
	}
	return dsn + "?_txlock=immediate"
}

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", immediateTxDSN(dsn))
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveTemplate(t models.DocumentTemplate) error {
	_, err := s.db.Exec(`
		INSERT INTO docpipe_templates (name, description, version, template_blob_path, prompt_blob_path, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			version = excluded.version,
			template_blob_path = excluded.template_blob_path,
			prompt_blob_path = excluded.prompt_blob_path,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`,
		t.Name, t.Description, t.Version, t.TemplateBlobPath, t.PromptBlobPath, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveTemplate failed", "error", err, "name", t.Name)
		return fmt.Errorf("failed to save template %s: %w", t.Name, err)
	}
	slog.Debug("SQLiteStore SaveTemplate succeeded", "name", t.Name, "version", t.Version)
	return nil
}

func (s *SQLiteStore) GetTemplateByName(name string) (*models.DocumentTemplate, error) {
	row := s.db.QueryRow(`SELECT `+templateColumns+` FROM docpipe_templates WHERE name = ?`, name)
	t, err := scanTemplateRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetTemplateByName failed", "error", err, "name", name)
		return nil, fmt.Errorf("failed to get template %s: %w", name, err)
	}
	return t, nil
}

func (s *SQLiteStore) ListActiveTemplates() ([]models.DocumentTemplate, error) {
	rows, err := s.db.Query(`SELECT ` + templateColumns + ` FROM docpipe_templates WHERE is_active = 1 ORDER BY name`)
	if err != nil {
		slog.Error("SQLiteStore ListActiveTemplates query failed", "error", err)
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []models.DocumentTemplate
	for rows.Next() {
		t, err := scanTemplateRow(rows)
		if err != nil {
			slog.Error("SQLiteStore ListActiveTemplates scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListActiveTemplates rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate template rows: %w", err)
	}
	slog.Debug("SQLiteStore ListActiveTemplates succeeded", "count", len(templates))
	return templates, nil
}

func (s *SQLiteStore) CreateSession(sess models.Session) error {
	plan, answered, collected, err := encodeSessionJSON(&sess)
	if err != nil {
		slog.Error("SQLiteStore CreateSession encode failed", "error", err, "sessionID", sess.SessionID)
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO docpipe_sessions (session_id, template_name, execution_plan, answered_question_ids, collected_data, current_sequence_number, status, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.SessionID, sess.TemplateName, plan, answered, collected,
		sess.CurrentSequenceNumber, sess.Status, sess.CreatedAt, sess.UpdatedAt, nullableTime(sess.ExpiresAt))
	if err != nil {
		slog.Error("SQLiteStore CreateSession failed", "error", err, "sessionID", sess.SessionID)
		return fmt.Errorf("failed to insert session %s: %w", sess.SessionID, err)
	}
	slog.Debug("SQLiteStore CreateSession succeeded", "sessionID", sess.SessionID, "template", sess.TemplateName)
	return nil
}

func (s *SQLiteStore) GetSession(sessionID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM docpipe_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get session %s: %w", sessionID, err)
	}
	return sess, nil
}

// UpdateSession performs a read-modify-write inside a transaction so
// concurrent submissions against the same session are serialized by SQLite's
// write lock. Nothing is persisted when mutate returns an error.
func (s *SQLiteStore) UpdateSession(sessionID string, mutate func(*models.Session) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("SQLiteStore UpdateSession begin failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRow(`SELECT `+sessionColumns+` FROM docpipe_sessions WHERE session_id = ?`, sessionID)
	sess, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		return models.ErrSessionNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore UpdateSession scan failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	if err := mutate(sess); err != nil {
		return err
	}

	plan, answered, collected, err := encodeSessionJSON(sess)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession encode failed", "error", err, "sessionID", sessionID)
		return err
	}
	_, err = tx.Exec(`
		UPDATE docpipe_sessions
		SET execution_plan = ?, answered_question_ids = ?, collected_data = ?,
			current_sequence_number = ?, status = ?, updated_at = ?, expires_at = ?
		WHERE session_id = ?`,
		plan, answered, collected, sess.CurrentSequenceNumber, sess.Status,
		sess.UpdatedAt, nullableTime(sess.ExpiresAt), sessionID)
	if err != nil {
		slog.Error("SQLiteStore UpdateSession write failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to update session %s: %w", sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		slog.Error("SQLiteStore UpdateSession commit failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to commit session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore UpdateSession succeeded", "sessionID", sessionID, "status", sess.Status)
	return nil
}

func (s *SQLiteStore) DeleteExpiredSessions(cutoff time.Time) (int, error) {
	res, err := s.db.Exec(`DELETE FROM docpipe_sessions WHERE expires_at IS NOT NULL AND expires_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore DeleteExpiredSessions failed", "error", err)
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	slog.Debug("SQLiteStore DeleteExpiredSessions succeeded", "removed", n)
	return int(n), nil
}

func (s *SQLiteStore) AddGeneratedDocument(d models.GeneratedDocument) error {
	_, err := s.db.Exec(`
		INSERT INTO docpipe_documents (document_id, session_id, blob_path, file_format, file_size_bytes, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.DocumentID, d.SessionID, d.BlobPath, d.FileFormat, d.FileSizeBytes, d.GeneratedAt)
	if err != nil {
		slog.Error("SQLiteStore AddGeneratedDocument failed", "error", err, "documentID", d.DocumentID)
		return fmt.Errorf("failed to insert document %s: %w", d.DocumentID, err)
	}
	slog.Debug("SQLiteStore AddGeneratedDocument succeeded", "documentID", d.DocumentID, "sessionID", d.SessionID)
	return nil
}

func (s *SQLiteStore) ListGeneratedDocuments(sessionID string) ([]models.GeneratedDocument, error) {
	rows, err := s.db.Query(`
		SELECT document_id, session_id, blob_path, file_format, file_size_bytes, generated_at
		FROM docpipe_documents WHERE session_id = ? ORDER BY generated_at`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore ListGeneratedDocuments query failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query documents for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	var docs []models.GeneratedDocument
	for rows.Next() {
		var d models.GeneratedDocument
		if err := rows.Scan(&d.DocumentID, &d.SessionID, &d.BlobPath, &d.FileFormat, &d.FileSizeBytes, &d.GeneratedAt); err != nil {
			slog.Error("SQLiteStore ListGeneratedDocuments scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListGeneratedDocuments rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}
	slog.Debug("SQLiteStore ListGeneratedDocuments succeeded", "sessionID", sessionID, "count", len(docs))
	return docs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
