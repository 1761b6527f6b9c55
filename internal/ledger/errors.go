package ledger

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a mutation arrives at or after the deadline.
var ErrClosed = errors.New("conversation is closed")

// ErrEmptyContent is returned when a statement has no content.
var ErrEmptyContent = errors.New("statement content must not be empty")

// ErrNotEligible is returned when the caller fails the eligibility check.
var ErrNotEligible = errors.New("caller is not eligible to participate")

// ErrAlreadyVoted is returned on a second vote by the same voter on the
// same statement.
var ErrAlreadyVoted = errors.New("voter has already voted on this statement")

// ErrStatementNotFound is returned when a vote references an unknown statement.
var ErrStatementNotFound = errors.New("statement not found")

// ErrUnknownAction is returned for a batch action with an unrecognized kind.
var ErrUnknownAction = errors.New("unknown batch action kind")

// BatchError reports which action of an atomic batch failed and why.
// The whole batch was rolled back; no action's effects persist.
type BatchError struct {
	Index int // zero-based position of the failing action
	Err   error
}

// Error implements error.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch action %d: %v", e.Index, e.Err)
}

// Unwrap exposes the failing action's underlying error to errors.Is/As.
func (e *BatchError) Unwrap() error {
	return e.Err
}
