package store

import (
	"context"
	"encoding/json"
	"time"
)

// QueryOpts configures attempt queries with filtering and pagination.
type QueryOpts struct {
	Limit  int   // max results (0 = unlimited)
	After  int64 // sequence > After
	Before int64 // sequence < Before (0 = no bound)
}

// Snapshot is one persisted copy of a journey's progress tree. Data is the
// JSON encoding owned by the progress package.
type Snapshot struct {
	ID        int64
	JourneyID string
	Sequence  int64
	Timestamp time.Time
	Data      json.RawMessage
}

// SnapshotRepo manages journey progress snapshots.
type SnapshotRepo interface {
	// Save stores a new snapshot, assigning its sequence number.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot of a journey, or nil if none exist.
	Latest(ctx context.Context, journeyID string) (*Snapshot, error)

	// Prune deletes all but the N most recent snapshots of a journey.
	Prune(ctx context.Context, journeyID string, keep int) error
}

// AttemptData captures one submitted assessment.
type AttemptData struct {
	ID          string
	Sequence    int64
	SessionID   string
	LearnerID   string
	StageID     string
	Reason      string // "voluntary" or "timeout"
	Score       float64
	Passed      bool
	Correct     int
	Total       int
	Payload     json.RawMessage
	SubmittedAt time.Time
}

// AttemptRepo provides append and query access to assessment attempts.
type AttemptRepo interface {
	// AppendAttempt records a graded submission.
	AppendAttempt(ctx context.Context, data AttemptData) error

	// Attempts returns a stage's attempts, newest first.
	Attempts(ctx context.Context, stageID string, opts QueryOpts) ([]AttemptData, error)

	// BestAttempt returns the highest scoring attempt for a stage, or nil.
	BestAttempt(ctx context.Context, stageID string) (*AttemptData, error)
}
