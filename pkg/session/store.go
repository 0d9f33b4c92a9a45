package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSession is returned when no session file exists. Callers distinguish
// "never logged in" from a corrupt or unreadable session file.
var ErrNoSession = errors.New("no saved session")

// Store persists sessions as JSON files
type Store struct {
	path string
}

// NewStore creates a session store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path
func (st *Store) Path() string {
	return st.path
}

// Save writes the session atomically with owner-only permissions
func (st *Store) Save(s *Session) error {
	if s == nil {
		return fmt.Errorf("cannot save nil session")
	}
	s.SavedAt = time.Now().UTC().Format(time.RFC3339)

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set session file permissions: %w", err)
	}
	if err := os.Rename(tmpName, st.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load reads the saved session. Returns ErrNoSession when the file does not
// exist; a corrupt or incomplete file is a distinct error.
func (st *Store) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", st.path, err)
	}
	if !s.IsComplete() {
		return nil, fmt.Errorf("session file %s is incomplete", st.path)
	}
	return &s, nil
}

// Clear removes the saved session. A missing file is not an error.
func (st *Store) Clear() error {
	err := os.Remove(st.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
