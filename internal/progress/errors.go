package progress

import (
	"errors"
	"fmt"
)

// ErrStaleReference indicates a stage or lesson id that is not in the tree.
var ErrStaleReference = errors.New("stale progress reference")

// ValidationError reports a malformed mutator argument that could not be
// clamped into range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SyncError reports a failed load or save. The in-memory tree stays
// authoritative; nothing is retried automatically.
type SyncError struct {
	Op  string // "load" or "save"
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("progress %s failed: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
