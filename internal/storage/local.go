package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/withObsrvr/tainit-daily/internal/util"
)

// LocalStore writes artifacts to the local filesystem.
type LocalStore struct {
	baseDir string
	prefix  string
}

// NewLocalStore creates a local store, creating baseDir if needed.
func NewLocalStore(baseDir, prefix string) (*LocalStore, error) {
	if err := util.EnsureDir(baseDir); err != nil {
		return nil, fmt.Errorf("create base directory %s: %w", baseDir, err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", baseDir, err)
	}
	return &LocalStore{baseDir: abs, prefix: prefix}, nil
}

// Path returns the filesystem path for key.
func (s *LocalStore) Path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// Write writes data atomically using a temp file and rename.
func (s *LocalStore) Write(ctx context.Context, key string, data []byte) error {
	path := s.Path(key)

	dir := filepath.Dir(path)
	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file %s: %w", tempPath, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s to %s: %w", tempPath, path, err)
	}
	return nil
}

// Exists checks if key has been written.
func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.Path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// URI returns the canonical URI for the given key.
func (s *LocalStore) URI(key string) string {
	return "file://" + filepath.ToSlash(s.Path(key))
}

// Prefix implements ArtifactStore.
func (s *LocalStore) Prefix() string { return s.prefix }

// Close is a no-op for local storage.
func (s *LocalStore) Close() error {
	return nil
}

var _ ArtifactStore = (*LocalStore)(nil)
