package store

import (
	"context"
	"fmt"
	"sync"

	entsql "entgo.io/ent/dialect/sql"
)

// Sequence streams, one per append-only table.
const (
	streamSnapshots = "journey_snapshots"
	streamAttempts  = "assessment_attempts"
)

// sequences hands out increasing numbers per stream from the sequences
// table. Each stream starts at 1 and keeps counting across restarts, so
// rows are ordered by sequence even when timestamps collide.
type sequences struct {
	mu  sync.Mutex
	drv *entsql.Driver
}

// Next claims the next number of stream.
func (s *sequences) Next(ctx context.Context, stream string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows entsql.Rows
	err := s.drv.Query(ctx,
		`INSERT INTO sequences (stream, value) VALUES (?, 1)
		ON CONFLICT(stream) DO UPDATE SET value = value + 1
		RETURNING value`,
		[]any{stream}, &rows)
	if err != nil {
		return 0, fmt.Errorf("next %s sequence: %w", stream, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("next %s sequence: %w", stream, err)
		}
		return 0, fmt.Errorf("next %s sequence: no row returned", stream)
	}
	var v int64
	if err := rows.Scan(&v); err != nil {
		return 0, fmt.Errorf("scan %s sequence: %w", stream, err)
	}
	return v, nil
}
