package autosave

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSlot stores one JSON file per key under dir.
type FileSlot struct {
	dir string
}

// NewFileSlot creates a slot rooted at dir.
func NewFileSlot(dir string) *FileSlot {
	return &FileSlot{dir: dir}
}

// Dir returns the directory snapshots are written to.
func (s *FileSlot) Dir() string {
	return s.dir
}

func (s *FileSlot) path(key string) (string, error) {
	normalized, err := Key(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, normalized+".json"), nil
}

// Load reads the snapshot stored for key.
func (s *FileSlot) Load(_ context.Context, key string) (Snapshot, error) {
	path, err := s.path(key)
	if err != nil {
		return Snapshot{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("autosave: decode %s: %w", path, err)
	}
	return snap, nil
}

// Save writes the snapshot via a temp file and rename.
func (s *FileSlot) Save(_ context.Context, snap Snapshot) error {
	path, err := s.path(snap.Key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Discard removes the snapshot. Missing snapshots are not an error.
func (s *FileSlot) Discard(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
