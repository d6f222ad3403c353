package ingestion

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fmuoria/candidate-screener/internal/models"
)

// FromPath builds a handle for a file on disk
func FromPath(path string) (models.FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return models.FileHandle{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return models.FileHandle{}, fmt.Errorf("%s is a directory", path)
	}

	return models.FileHandle{
		Name:        info.Name(),
		ContentType: ContentTypeFor(path),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// FromBytes builds a handle over an in-memory payload
func FromBytes(name, contentType string, data []byte) models.FileHandle {
	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	return models.FileHandle{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// LoadPaths resolves files and directories into handles. Files named
// explicitly are always returned so validation can reject them; directories
// contribute only their supported documents, sorted by name.
func LoadPaths(paths []string) ([]models.FileHandle, error) {
	var handles []models.FileHandle
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}

		if !info.IsDir() {
			h, err := FromPath(p)
			if err != nil {
				return nil, err
			}
			handles = append(handles, h)
			continue
		}

		dirHandles, err := loadDir(p)
		if err != nil {
			return nil, err
		}
		handles = append(handles, dirHandles...)
	}
	return handles, nil
}

func loadDir(dir string) ([]models.FileHandle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var handles []models.FileHandle
	for _, entry := range entries {
		if entry.IsDir() || !IsSupported(entry.Name(), "") {
			continue
		}
		h, err := FromPath(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}
