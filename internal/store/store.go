// Package store provides storage backends for DocPipe.
//
// It defines the Store interface over sessions, template metadata, and
// generated document records, with PostgreSQL, SQLite, and in-memory
// implementations. Session updates are serialized per session id so that
// concurrent submissions cannot interleave their merges.
package store

import (
	"strings"
	"time"

	"github.com/docpipe/docpipe/internal/models"
)

// Store is the persistence interface consumed by the API layer.
type Store interface {
	// Templates
	SaveTemplate(t models.DocumentTemplate) error
	GetTemplateByName(name string) (*models.DocumentTemplate, error)
	ListActiveTemplates() ([]models.DocumentTemplate, error)

	// Sessions
	CreateSession(s models.Session) error
	GetSession(sessionID string) (*models.Session, error)
	// UpdateSession applies mutate to the stored session as one atomic
	// read-modify-write unit. Implementations serialize concurrent calls
	// for the same session id; when mutate returns an error nothing is
	// persisted and the error is returned unchanged.
	UpdateSession(sessionID string, mutate func(*models.Session) error) error
	// DeleteExpiredSessions removes sessions whose advisory TTL elapsed
	// before the cutoff and returns how many were removed.
	DeleteExpiredSessions(cutoff time.Time) (int, error)

	// Generated documents (append-only)
	AddGeneratedDocument(d models.GeneratedDocument) error
	ListGeneratedDocuments(sessionID string) ([]models.GeneratedDocument, error)

	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// DetectDSNType reports "postgres" for PostgreSQL-looking DSNs and
// "sqlite" otherwise (file paths).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
