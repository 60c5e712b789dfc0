package orchestrator

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/council/internal/roles"
)

var (
	// ErrSessionNotFound is returned for unknown or evicted session ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidRequest is returned when Start rejects a request.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrSessionTerminal is returned when a finished session is mutated.
	ErrSessionTerminal = errors.New("session is terminal")

	// ErrDuplicateSession is returned when a session id is registered twice.
	ErrDuplicateSession = errors.New("session already exists")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("orchestrator closed")
)

// PhaseExecutionError is an internal fault while running a phase. It fails
// the session; provider failures never produce one.
type PhaseExecutionError struct {
	Phase Phase
	Role  roles.ID
	Err   error
}

func (e *PhaseExecutionError) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("phase %s failed for role %s: %v", e.Phase, e.Role, e.Err)
	}
	return fmt.Sprintf("phase %s failed: %v", e.Phase, e.Err)
}

func (e *PhaseExecutionError) Unwrap() error {
	return e.Err
}
