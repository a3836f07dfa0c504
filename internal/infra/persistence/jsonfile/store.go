// Package jsonfile persists snapshots as a single human-editable JSON file.
package jsonfile

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"familytree/pkg/domain"
)

// DefaultPath is used when no file is configured.
const DefaultPath = "family_tree.json"

var _ domain.SnapshotStore = (*Store)(nil)

// Store reads and writes one JSON snapshot file. Writes go through a
// temporary file in the same directory followed by a rename.
type Store struct {
	mu   sync.Mutex
	path string
}

// New returns a store for path. Nothing is touched on disk until Load or Save.
func New(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

// Location returns the file path.
func (s *Store) Location() string { return s.path }

// Close is a no-op; the file is not held open between calls.
func (s *Store) Close() error { return nil }

// Load reads the snapshot. A missing file yields an empty snapshot; an
// unreadable, malformed or schema-invalid file is a PersistenceError.
func (s *Store) Load(ctx context.Context) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.EmptySnapshot(), nil
	}
	if err != nil {
		return domain.Snapshot{}, &domain.PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	snapshot, err := Decode(data)
	if err != nil {
		return domain.Snapshot{}, &domain.PersistenceError{Op: "load", Path: s.path, Err: err}
	}
	return snapshot, nil
}

// Save writes the snapshot atomically. On failure the previous file is left
// in place.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(snapshot)
	if err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeFileAtomic(s.path, data); err != nil {
		return &domain.PersistenceError{Op: "save", Path: s.path, Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".familytree-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
