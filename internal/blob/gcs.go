package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
)

// GCSStore stores blobs as objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed blob store. Credentials are resolved
// through Application Default Credentials.
func NewGCSStore(ctx context.Context, opts ...Option) (*GCSStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Bucket == "" {
		slog.Error("GCSStore bucket not set")
		return nil, fmt.Errorf("blob bucket not set")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("GCSStore failed to create storage client", "error", err)
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	slog.Debug("GCSStore initialized", "bucket", cfg.Bucket)
	return &GCSStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *GCSStore) Load(ctx context.Context, path string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		slog.Error("GCSStore Load failed", "error", err, "bucket", s.bucket, "path", path)
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		slog.Error("GCSStore Load read failed", "error", err, "bucket", s.bucket, "path", path)
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	slog.Debug("GCSStore Load succeeded", "path", path, "size", len(data))
	return data, nil
}

func (s *GCSStore) Save(ctx context.Context, path string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		slog.Error("GCSStore Save write failed", "error", err, "bucket", s.bucket, "path", path)
		return fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		slog.Error("GCSStore Save close failed", "error", err, "bucket", s.bucket, "path", path)
		return fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	slog.Debug("GCSStore Save succeeded", "path", path, "size", len(data))
	return nil
}

// Close releases the underlying storage client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
