package schema

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying failures across the engine.
//
// ErrValidation marks bad input rejected synchronously; it is never retried.
// ErrRateExceeded marks a collaborator-reported quota/429; it is surfaced to
// the user immediately instead of being retried blindly.
// ErrStoreUnavailable marks a failed write on the backing store; reads fail
// open and never produce it.
var (
	ErrValidation       = errors.New("validation failed")
	ErrRateExceeded     = errors.New("rate limit exceeded")
	ErrStoreUnavailable = errors.New("state store unavailable")
)

// CollaboratorError wraps a failure from an external collaborator (LLM,
// tool, messaging platform). Units failing with it are retried with backoff
// at the queue layer.
type CollaboratorError struct {
	Collaborator string // "llm", "search", "messaging", …
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// NewCollaboratorError wraps err as originating from the named collaborator.
func NewCollaboratorError(collaborator string, err error) error {
	return &CollaboratorError{Collaborator: collaborator, Err: err}
}
