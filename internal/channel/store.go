package channel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnvSharedDir names the shared directory on both sides of the relay.
// The default differs per side: the container mounts it at /shared, the
// host keeps it under the temporary-files root.
const EnvSharedDir = "SHARED_DIR"

// Well-known names inside the shared directory.
const (
	SocketName = "notify.sock"
	stateName  = "relay-state.json"
)

// Store reads and writes RelayState snapshots in the shared directory.
// Writes go through a temp-file-plus-rename so a concurrent reader only
// ever observes a complete snapshot, old or new. There is exactly one
// writer (the container wrapper), so no further locking is needed.
type Store struct {
	dir string
}

// NewStore returns a store rooted at the shared directory.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the shared directory path.
func (s *Store) Dir() string {
	return s.dir
}

// SocketPath returns the emulated notification socket path.
func (s *Store) SocketPath() string {
	return filepath.Join(s.dir, SocketName)
}

// StatePath returns the canonical snapshot file path.
func (s *Store) StatePath() string {
	return filepath.Join(s.dir, stateName)
}

// Write persists the snapshot atomically.
func (s *Store) Write(state *RelayState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tempPath := s.StatePath() + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	if err := os.Rename(tempPath, s.StatePath()); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Clear removes the snapshot (and any half-written temporary) plus the
// notification socket left behind by a previous run. A leftover
// snapshot must never be mistaken for output of the run about to start.
func (s *Store) Clear() error {
	for _, path := range []string{s.StatePath(), s.StatePath() + ".tmp", s.SocketPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove leftover %s: %w", path, err)
		}
	}
	return nil
}

// Read returns the most recent complete snapshot, or nil if none has
// been written yet. The rename discipline on the write side means a
// reader sees either the old file or the new file, never a torn one.
func (s *Store) Read() (*RelayState, error) {
	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state RelayState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	return &state, nil
}
