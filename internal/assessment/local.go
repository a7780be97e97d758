package assessment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/logger"
	"github.com/abhisek/prepcoach/internal/store"
)

// LocalSubmitter grades submissions against the content provider's final
// test and records every attempt in the local store.
type LocalSubmitter struct {
	content   content.Provider
	attempts  store.AttemptRepo
	learnerID string
	log       *logger.Logger
}

var _ Submitter = (*LocalSubmitter)(nil)

// NewLocalSubmitter creates a LocalSubmitter. attempts may be nil to skip
// recording.
func NewLocalSubmitter(p content.Provider, attempts store.AttemptRepo, learnerID string, log *logger.Logger) *LocalSubmitter {
	return &LocalSubmitter{
		content:   p,
		attempts:  attempts,
		learnerID: learnerID,
		log:       logger.OrNop(log).With("component", "local_submitter"),
	}
}

// ForLearner returns a copy that records attempts under learnerID.
func (s *LocalSubmitter) ForLearner(learnerID string) *LocalSubmitter {
	c := *s
	c.learnerID = learnerID
	return &c
}

// SubmitAssessment regrades the submission against the stage's final test
// and records the attempt.
func (s *LocalSubmitter) SubmitAssessment(ctx context.Context, sub *Submission) (*Result, error) {
	idx, err := s.content.StageIndex(ctx, sub.StageID)
	if err != nil {
		return nil, err
	}
	ft, err := s.content.GetStageFinalTest(ctx, idx)
	if err != nil {
		return nil, err
	}

	sub = sub.Clone()
	Regrade(sub, ft.Questions)
	res := Grade(sub, ft.MinScore)

	if s.attempts != nil {
		payload, err := json.Marshal(sub)
		if err != nil {
			return nil, fmt.Errorf("encode submission: %w", err)
		}
		err = s.attempts.AppendAttempt(ctx, store.AttemptData{
			ID:          uuid.New().String(),
			SessionID:   sub.SessionID,
			LearnerID:   s.learnerID,
			StageID:     sub.StageID,
			Reason:      string(sub.Reason),
			Score:       res.Score,
			Passed:      res.Passed,
			Correct:     res.CorrectAnswers,
			Total:       res.TotalQuestions,
			Payload:     payload,
			SubmittedAt: sub.SubmittedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("record attempt: %w", err)
		}
	}

	s.log.Info("assessment graded",
		"stage_id", sub.StageID, "reason", sub.Reason,
		"score", res.Score, "passed", res.Passed)
	return res, nil
}
