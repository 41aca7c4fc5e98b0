package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotStore persists a JSON document with whole-file semantics: read in
// full at load, written in full after each mutation. Baselines stay a pure
// function of the snapshot this way.
//
// The model is deliberately single-writer. Concurrent writers to the same
// path would lose updates; callers that need concurrent access must wrap the
// whole load-merge-save cycle in their own mutual exclusion.
type SnapshotStore struct {
	path string
}

// NewSnapshotStore creates a store for the given file path. The parent
// directory is created on first save.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Path returns the backing file path.
func (s *SnapshotStore) Path() string { return s.path }

// Load reads the whole snapshot into v. Returns false with a nil error when
// the file does not exist yet; an unreadable or unparseable existing file is
// an unrecoverable error (the caller cannot safely overwrite state it could
// not read).
func (s *SnapshotStore) Load(v interface{}) (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", s.path, err)
	}
	return true, nil
}

// Save writes v as the complete new snapshot.
func (s *SnapshotStore) Save(v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return nil
}
