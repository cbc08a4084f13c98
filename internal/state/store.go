package state

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bguidolim/mcs/internal/platform"
	"github.com/spf13/afero"
)

// PersistenceError reports a failed state write. It is fatal for the run.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting state to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store reads and writes one scope's state file.
type Store struct {
	fs   afero.Fs
	path string
}

// NewStore returns a store for the state file at path.
func NewStore(fsys afero.Fs, path string) *Store {
	return &Store{fs: fsys, path: path}
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Load reads the state file. A missing file yields an empty state.
func (s *Store) Load() (*SyncState, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state %s: %w", s.path, err)
	}

	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", s.path, err)
	}
	st.init()
	return st, nil
}

// Save normalizes st and writes it atomically.
func (s *Store) Save(st *SyncState) error {
	st.Normalize()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	data = append(data, '\n')
	if err := platform.WriteFileAtomic(s.fs, s.path, data, 0644); err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}
