// Package history persists conversation sessions to durable storage and
// enumerates what is stored.
package history

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no stored session exists for an ID.
var ErrNotFound = errors.New("session not found")

// LoadError reports a stored session that exists but cannot be used.
type LoadError struct {
	SessionID string
	Err       error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load session %s: %v", e.SessionID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// PersistError reports a session write that did not complete. The in-memory
// history is still correct; only the stored copy lags.
type PersistError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *PersistError) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("persist session %s (%s): %v", e.SessionID, e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// IsLoadError reports whether err is or wraps a *LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}
