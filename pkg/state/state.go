// Package state persists the usage state file and the daemon snapshot file.
// Every write goes to a temporary file in the target directory that is then
// renamed over the target, so readers never see a partial file.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pario-ai/headroom/pkg/models"
)

// State is the persisted usage state.
type State struct {
	Plan      models.PlanID            `json:"plan,omitempty"`
	Pushed    *models.PushedUsage      `json:"pushed,omitempty"`
	Snapshot  *models.CapacitySnapshot `json:"snapshot,omitempty"`
	UpdatedAt time.Time                `json:"updated_at,omitzero"`
}

// Store reads and writes State at a fixed path.
type Store struct {
	path string
	now  func() time.Time
}

// NewStore creates a Store for path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state. A missing file yields the zero State.
func (s *Store) Load() (State, error) {
	var st State
	found, err := readJSON(s.path, &st)
	if err != nil {
		return State{}, fmt.Errorf("load state: %w", err)
	}
	if !found {
		return State{}, nil
	}
	return st, nil
}

// Save stamps UpdatedAt and atomically replaces the state file.
func (s *Store) Save(st State) error {
	st.UpdatedAt = s.now().UTC()
	if err := writeJSON(s.path, st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Update loads the state, applies fn and saves the result. fn returning an
// error aborts the write.
func (s *Store) Update(fn func(*State) error) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.Save(st)
}

// Remove deletes the state file. Removing a missing file is not an error.
func (s *Store) Remove() error {
	return removeFile(s.path)
}

// ReadSnapshot reads a snapshot file such as the one the daemon writes.
// A missing file returns nil without error.
func ReadSnapshot(path string) (*models.CapacitySnapshot, error) {
	var snap models.CapacitySnapshot
	found, err := readJSON(path, &snap)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

// WriteSnapshot atomically replaces the snapshot file at path.
func WriteSnapshot(path string, snap models.CapacitySnapshot) error {
	if err := writeJSON(path, snap); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// RemoveSnapshot deletes the snapshot file at path if it exists.
func RemoveSnapshot(path string) error {
	return removeFile(path)
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
