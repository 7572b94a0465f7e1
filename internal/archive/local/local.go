// Package local archives snapshots on the local filesystem.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Store writes snapshots under a base directory, one file per key.
type Store struct {
	dir string
}

// New creates the base directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("local archive: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local archive: create %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Put(_ context.Context, key string, _ string, data []byte) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("local archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("local archive: write %s: %w", key, err)
	}
	return "file://" + path, nil
}
