package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// snapshotRepo implements SnapshotRepo on the journey_snapshots table.
type snapshotRepo struct {
	drv *entsql.Driver
	seq *sequences
}

func (r *snapshotRepo) Save(ctx context.Context, snap *Snapshot) error {
	seqNum, err := r.seq.Next(ctx, streamSnapshots)
	if err != nil {
		return err
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}

	query, args := builder().Insert("journey_snapshots").
		Columns("journey_id", "sequence", "timestamp", "data").
		Values(snap.JourneyID, seqNum, snap.Timestamp.UnixNano(), string(snap.Data)).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = id
	}
	snap.Sequence = seqNum
	return nil
}

func (r *snapshotRepo) Latest(ctx context.Context, journeyID string) (*Snapshot, error) {
	b := builder()
	query, args := b.Select("id", "journey_id", "sequence", "timestamp", "data").
		From(b.Table("journey_snapshots")).
		Where(entsql.EQ("journey_id", journeyID)).
		OrderBy(entsql.Desc("sequence")).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query latest snapshot: %w", err)
		}
		return nil, nil
	}

	var (
		s    Snapshot
		ts   int64
		data string
	)
	if err := rows.Scan(&s.ID, &s.JourneyID, &s.Sequence, &ts, &data); err != nil {
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	s.Timestamp = time.Unix(0, ts).UTC()
	s.Data = []byte(data)
	return &s, nil
}

func (r *snapshotRepo) Prune(ctx context.Context, journeyID string, keep int) error {
	if keep <= 0 {
		return fmt.Errorf("prune snapshots: keep must be > 0, got %d", keep)
	}

	// Find the sequence threshold: the first snapshot past the newest keep.
	b := builder()
	query, args := b.Select("sequence").
		From(b.Table("journey_snapshots")).
		Where(entsql.EQ("journey_id", journeyID)).
		OrderBy(entsql.Desc("sequence")).
		Offset(keep).
		Limit(1).
		Query()

	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return fmt.Errorf("query snapshots for prune: %w", err)
	}
	var threshold int64
	found := rows.Next()
	if found {
		if err := rows.Scan(&threshold); err != nil {
			rows.Close()
			return fmt.Errorf("scan prune threshold: %w", err)
		}
	}
	rows.Close()
	if !found {
		return nil // fewer than keep snapshots exist
	}

	query, args = b.Delete("journey_snapshots").
		Where(entsql.And(
			entsql.EQ("journey_id", journeyID),
			entsql.LTE("sequence", threshold),
		)).
		Query()
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}
