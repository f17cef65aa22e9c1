package store

import (
	"fmt"
	"log/slog"
	"os"

	json "github.com/goccy/go-json"

	"github.com/marllondevsec/pandacell/internal/models"
)

// SessionStore persists the single SessionState record. The file is fully
// rewritten on every save via atomic replace; it is never appended to.
type SessionStore struct {
	path string
}

// NewSessionStore returns a session store backed by the given file path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Load reads the persisted session state. It returns (nil, nil) when no state
// has been saved. A file that exists but cannot be parsed is an error: the
// caller cannot safely decide between resuming and starting fresh.
func (s *SessionStore) Load() (*models.SessionState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file %s: %w", s.path, err)
	}
	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", s.path, err)
	}
	return &state, nil
}

// Save rewrites the session state. It is called synchronously after every
// recorded sale, never batched, so state and log are at most one sale apart
// after a crash.
func (s *SessionStore) Save(state models.SessionState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session state: %w", err)
	}
	if err := WriteFileAtomic(s.path, data); err != nil {
		slog.Error("SessionStore.Save: write failed", "error", err, "path", s.path)
		return err
	}
	return nil
}

// Clear removes the persisted state. Clearing an absent state is a no-op.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear session file %s: %w", s.path, err)
	}
	return nil
}
