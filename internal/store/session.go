package store

import (
	"encoding/json"
	"fmt"

	"quizdeck/internal/model"
)

// The store holds at most one resumable session snapshot. It is mirrored on
// every answer and navigation and cleared on submit, abandonment, or when the
// underlying quiz is deleted.

// SaveSession replaces the session snapshot.
func (s *Store) SaveSession(st model.SessionState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("serialize session: %w", err)
	}
	if err := s.setRaw(keySession, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// LoadSession returns the saved snapshot, if any. Corrupt snapshots read as
// absent.
func (s *Store) LoadSession() (model.SessionState, bool) {
	var st model.SessionState
	if !s.readJSON(keySession, &st) {
		return model.SessionState{}, false
	}
	return st, true
}

// ClearSession drops the snapshot.
func (s *Store) ClearSession() error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, keySession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
