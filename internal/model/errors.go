package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a quiz id is absent from the store.
	ErrNotFound = errors.New("quiz not found")
)

// DuplicateError is returned by Save when an existing record shares the
// document's content fingerprint. It is not fatal: the caller decides
// whether to proceed with ForceSave or abort.
type DuplicateError struct {
	ExistingID    string
	ExistingTitle string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate quiz content: %q already stored as %s", e.ExistingTitle, e.ExistingID)
}
