// Package artifact persists trained model artifacts on disk.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// FileStore keeps model artifacts as files under a single directory.
// Saves are atomic: the artifact is written to a temp file and renamed
// into place, so a reader never observes a half-written model.
type FileStore struct {
	dir string
}

// NewFileStore creates the artifact directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads a named artifact. A missing artifact is not an error.
func (s *FileStore) Load(name string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}
	return data, true, nil
}

// Save writes a named artifact atomically.
func (s *FileStore) Save(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close artifact %s: %w", name, err)
	}

	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to commit artifact %s: %w", name, err)
	}
	return nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name+".bin")
}

var _ domain.ArtifactStore = (*FileStore)(nil)
