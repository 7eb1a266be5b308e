package blob

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Constants for filesystem store configuration
const (
	// DefaultDirPermissions defines the default permissions for blob directories
	DefaultDirPermissions = 0755
	// DefaultFilePermissions defines the default permissions for blob files
	DefaultFilePermissions = 0644
)

// FSStore stores blobs as files under a base directory.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem blob store rooted at the configured base
// directory, creating it if necessary.
func NewFSStore(opts ...Option) (*FSStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseDir == "" {
		slog.Error("FSStore base directory not set")
		return nil, fmt.Errorf("blob base directory not set")
	}
	if err := os.MkdirAll(cfg.BaseDir, DefaultDirPermissions); err != nil {
		slog.Error("FSStore failed to create base directory", "error", err, "dir", cfg.BaseDir)
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	slog.Debug("FSStore initialized", "baseDir", cfg.BaseDir)
	return &FSStore{baseDir: cfg.BaseDir}, nil
}

// resolve maps a blob path to a file path, rejecting escapes from baseDir.
func (s *FSStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid blob path %q", path)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *FSStore) Load(ctx context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		slog.Error("FSStore Load failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	slog.Debug("FSStore Load succeeded", "path", path, "size", len(data))
	return data, nil
}

func (s *FSStore) Save(ctx context.Context, path string, data []byte) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), DefaultDirPermissions); err != nil {
		slog.Error("FSStore Save mkdir failed", "error", err, "path", path)
		return fmt.Errorf("failed to create blob directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, DefaultFilePermissions); err != nil {
		slog.Error("FSStore Save failed", "error", err, "path", path)
		return fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	slog.Debug("FSStore Save succeeded", "path", path, "size", len(data))
	return nil
}
