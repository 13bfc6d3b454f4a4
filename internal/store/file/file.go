// Package file implements store.Persister as a single JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alfredjeanlab/clawnet/internal/store"
)

// FileStore persists state to one JSON file. Writes go to a temporary file
// in the same directory and are renamed into place, so a crash never leaves
// a partially-written state at path.
type FileStore struct {
	path string
}

var _ store.Persister = (*FileStore)(nil)

// New returns a FileStore at path, creating the parent directory.
func New(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the file location.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (*store.State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st store.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", f.path, err)
	}
	return &st, nil
}

func (f *FileStore) Save(_ context.Context, st *store.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
