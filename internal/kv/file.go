package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps one JSON file per key under a data directory.
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create data directory: %w", ErrPersistence, err)
	}
	return &FileStore{dir: dir}, nil
}

func (fs *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(fs.dir, safe+".json")
}

func (fs *FileStore) Read(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: failed to read %s: %w", ErrPersistence, key, err)
	}
	return data, true, nil
}

// Write replaces the key's file atomically via a temp file and rename.
func (fs *FileStore) Write(_ context.Context, key string, value []byte) error {
	target := fs.path(key)
	tmp, err := os.CreateTemp(fs.dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file for %s: %w", ErrPersistence, key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to write %s: %w", ErrPersistence, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to close %s: %w", ErrPersistence, key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: failed to replace %s: %w", ErrPersistence, key, err)
	}
	return nil
}
