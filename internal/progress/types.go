// Package progress maintains the Journey -> Stage -> Lesson progress tree,
// derives status/score/time roll-ups and tracks sync state with the
// persistence collaborator.
package progress

import (
	"slices"
	"time"
)

// Status is the lifecycle state of a lesson, stage or journey.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// LessonProgress records a learner's result for one lesson (day).
type LessonProgress struct {
	LessonID    string     `json:"lessonId"`
	Status      Status     `json:"status"`
	Score       float64    `json:"score"`     // 0-100
	TimeSpent   int        `json:"timeSpent"` // seconds
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	// Attempts is always 1: retakes update the record in place without
	// counting. Kept as-is until retake counting is specified.
	Attempts int `json:"attempts"`
}

// FinalExamResult is the outcome of a stage's gating test.
type FinalExamResult struct {
	Score       float64   `json:"score"` // percentage
	Passed      bool      `json:"passed"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
	TimedOut    bool      `json:"timedOut"`
	CompletedAt time.Time `json:"completedAt"`
}

// StageProgress aggregates the lessons of one stage. Status, OverallScore,
// TimeSpent and CompletedAt are derived and must not be set directly.
type StageProgress struct {
	StageID string `json:"stageId"`
	// LessonIDs is the planned lesson order. Planned lessons without a
	// LessonProgress count as not started.
	LessonIDs    []string         `json:"lessonIds"`
	Lessons      []LessonProgress `json:"lessons"`
	Status       Status           `json:"status"`
	OverallScore float64          `json:"overallScore"`
	TimeSpent    int              `json:"timeSpent"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	FinalExam    *FinalExamResult `json:"finalExam,omitempty"`
}

// Lesson returns the recorded progress for lessonID, or nil.
func (s *StageProgress) Lesson(lessonID string) *LessonProgress {
	if s == nil {
		return nil
	}
	for i := range s.Lessons {
		if s.Lessons[i].LessonID == lessonID {
			return &s.Lessons[i]
		}
	}
	return nil
}

// LessonStatus returns the status of lessonID, not_started when unrecorded.
func (s *StageProgress) LessonStatus(lessonID string) Status {
	if lp := s.Lesson(lessonID); lp != nil {
		return lp.Status
	}
	return StatusNotStarted
}

// JourneyProgress is the root aggregate for one learner's curriculum.
type JourneyProgress struct {
	JourneyID       string          `json:"journeyId"`
	Status          Status          `json:"status"`
	Stages          []StageProgress `json:"stages"`
	CurrentStageID  string          `json:"currentStageId,omitempty"`
	CurrentLessonID string          `json:"currentLessonId,omitempty"`
	OverallScore    float64         `json:"overallScore"`
	TimeSpent       int             `json:"timeSpent"`
	LastActivity    time.Time       `json:"lastActivity"`
	CompletedAt     *time.Time      `json:"completedAt,omitempty"`
}

// Stage returns the stage with stageID, or nil.
func (j *JourneyProgress) Stage(stageID string) *StageProgress {
	if j == nil {
		return nil
	}
	for i := range j.Stages {
		if j.Stages[i].StageID == stageID {
			return &j.Stages[i]
		}
	}
	return nil
}

// Clone returns a deep copy.
func (j *JourneyProgress) Clone() *JourneyProgress {
	if j == nil {
		return nil
	}
	c := *j
	c.CompletedAt = cloneTime(j.CompletedAt)
	c.Stages = make([]StageProgress, len(j.Stages))
	for i, s := range j.Stages {
		cs := s
		cs.LessonIDs = slices.Clone(s.LessonIDs)
		cs.CompletedAt = cloneTime(s.CompletedAt)
		if s.FinalExam != nil {
			fe := *s.FinalExam
			cs.FinalExam = &fe
		}
		cs.Lessons = make([]LessonProgress, len(s.Lessons))
		for k, l := range s.Lessons {
			l.CompletedAt = cloneTime(l.CompletedAt)
			cs.Lessons[k] = l
		}
		c.Stages[i] = cs
	}
	return &c
}

// NewJourney returns an empty, not-started journey.
func NewJourney(journeyID string) *JourneyProgress {
	return &JourneyProgress{
		JourneyID: journeyID,
		Status:    StatusNotStarted,
		Stages:    []StageProgress{},
	}
}

// Outline is the planned curriculum shape the tree is seeded from.
type Outline struct {
	JourneyID string
	Stages    []StageOutline
}

// StageOutline lists a stage's lessons in order.
type StageOutline struct {
	ID        string
	LessonIDs []string
}

// SyncStatus tracks the relation between the in-memory tree and the store.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncFailed  SyncStatus = "failed"
)

// SyncState is the aggregator's persistence bookkeeping.
type SyncState struct {
	IsDirty   bool
	Status    SyncStatus
	LastSaved *time.Time
	LastError string
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
