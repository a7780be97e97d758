package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
)

// attemptRepo implements AttemptRepo on the assessment_attempts table.
type attemptRepo struct {
	drv *entsql.Driver
	seq *sequences
}

var attemptColumns = []string{
	"id", "sequence", "session_id", "learner_id", "stage_id", "reason",
	"score", "passed", "correct", "total", "payload", "submitted_at",
}

func (r *attemptRepo) AppendAttempt(ctx context.Context, data AttemptData) error {
	seqNum, err := r.seq.Next(ctx, streamAttempts)
	if err != nil {
		return err
	}
	if data.SubmittedAt.IsZero() {
		data.SubmittedAt = time.Now().UTC()
	}
	payload := string(data.Payload)
	if payload == "" {
		payload = "null"
	}

	query, args := builder().Insert("assessment_attempts").
		Columns(attemptColumns...).
		Values(
			data.ID, seqNum, data.SessionID, data.LearnerID, data.StageID, data.Reason,
			data.Score, boolToInt(data.Passed), data.Correct, data.Total, payload,
			data.SubmittedAt.UnixNano(),
		).
		Query()

	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (r *attemptRepo) Attempts(ctx context.Context, stageID string, opts QueryOpts) ([]AttemptData, error) {
	preds := []*entsql.Predicate{entsql.EQ("stage_id", stageID)}
	if opts.After > 0 {
		preds = append(preds, entsql.GT("sequence", opts.After))
	}
	if opts.Before > 0 {
		preds = append(preds, entsql.LT("sequence", opts.Before))
	}

	b := builder()
	sel := b.Select(attemptColumns...).
		From(b.Table("assessment_attempts")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Desc("sequence"))
	if opts.Limit > 0 {
		sel = sel.Limit(opts.Limit)
	}
	query, args := sel.Query()
	return r.query(ctx, query, args)
}

func (r *attemptRepo) BestAttempt(ctx context.Context, stageID string) (*AttemptData, error) {
	b := builder()
	query, args := b.Select(attemptColumns...).
		From(b.Table("assessment_attempts")).
		Where(entsql.EQ("stage_id", stageID)).
		OrderBy(entsql.Desc("score"), entsql.Asc("sequence")).
		Limit(1).
		Query()

	attempts, err := r.query(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return &attempts[0], nil
}

func (r *attemptRepo) query(ctx context.Context, query string, args []any) ([]AttemptData, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []AttemptData
	for rows.Next() {
		var (
			a         AttemptData
			passed    int
			payload   string
			submitted int64
		)
		if err := rows.Scan(
			&a.ID, &a.Sequence, &a.SessionID, &a.LearnerID, &a.StageID, &a.Reason,
			&a.Score, &passed, &a.Correct, &a.Total, &payload, &submitted,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Passed = passed != 0
		a.Payload = []byte(payload)
		a.SubmittedAt = time.Unix(0, submitted).UTC()
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
