package assessment

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongPhase is returned when an action is not valid in the
	// controller's current phase.
	ErrWrongPhase = errors.New("action not allowed in current phase")

	// ErrClosed is returned by every action after Close.
	ErrClosed = errors.New("assessment session closed")

	// ErrUnknownItem is returned when an answer targets an item that is not
	// part of the current section.
	ErrUnknownItem = errors.New("unknown item")
)

// SubmitError wraps a failed hand-off to the Submitter. The controller
// stays in PhaseSubmitting until Retry succeeds.
type SubmitError struct {
	Reason SubmitReason
	Err    error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("submit assessment (%s): %v", e.Reason, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }
