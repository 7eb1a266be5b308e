// Package blob provides binary object storage for docpipe: template
// definitions, prompt configurations and generated documents.
//
// Two backends are available, a local filesystem store and a Google Cloud
// Storage store, plus an optional read-through cache (in-memory or Redis).
package blob

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates the requested blob does not exist in the backend.
var ErrNotFound = errors.New("blob not found")

// Store is the minimal blob interface the rest of the service consumes.
type Store interface {
	// Load reads the blob at path. Returns ErrNotFound when it does not exist.
	Load(ctx context.Context, path string) ([]byte, error)
	// Save writes data to path, overwriting any existing blob.
	Save(ctx context.Context, path string, data []byte) error
}

// Blob path layout. All paths are relative to the backend root.
const (
	templatePrefix = "templates"
	documentPrefix = "documents"
)

// TemplatePath returns the blob path of a template's structure definition.
func TemplatePath(name string) string {
	return fmt.Sprintf("%s/%s/template.json", templatePrefix, name)
}

// PromptConfigPath returns the blob path of a template's prompt configuration.
func PromptConfigPath(name string) string {
	return fmt.Sprintf("%s/%s/prompt_config.json", templatePrefix, name)
}

// DocumentPath returns the blob path of a generated document.
func DocumentPath(sessionID string, generatedAt time.Time, format string) string {
	return fmt.Sprintf("%s/%s_%s.%s", documentPrefix, sessionID, generatedAt.UTC().Format("20060102T150405"), format)
}

// Opts holds configuration for blob store constructors.
type Opts struct {
	// BaseDir is the root directory for the filesystem backend.
	BaseDir string
	// Bucket is the bucket name for the GCS backend.
	Bucket string
}

// Option configures blob store construction.
type Option func(*Opts)

// WithBaseDir sets the filesystem backend root directory.
func WithBaseDir(dir string) Option {
	return func(o *Opts) { o.BaseDir = dir }
}

// WithBucket sets the GCS bucket name.
func WithBucket(bucket string) Option {
	return func(o *Opts) { o.Bucket = bucket }
}
