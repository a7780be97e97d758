package progress

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/abhisek/prepcoach/internal/logger"
)

// Repository is the persistence collaborator. LoadProgress returns nil, nil
// when no progress exists for the journey.
type Repository interface {
	LoadProgress(ctx context.Context, journeyID string) (*JourneyProgress, error)
	SaveProgress(ctx context.Context, p *JourneyProgress) error
}

// Aggregator owns one learner's progress tree. Every mutation goes through
// its methods and leaves the roll-ups consistent before returning; readers
// only ever receive copies.
type Aggregator struct {
	mu      sync.Mutex
	repo    Repository
	outline Outline
	journey *JourneyProgress
	sync    SyncState
	rev     uint64 // bumped on every mutation
	now     func() time.Time
	log     *logger.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(a *Aggregator) { a.log = l }
}

// NewAggregator creates an aggregator holding a fresh tree seeded from the
// outline. Call Load to pick up persisted progress.
func NewAggregator(repo Repository, outline Outline, opts ...Option) *Aggregator {
	a := &Aggregator{
		repo:    repo,
		outline: outline,
		now:     time.Now,
		sync:    SyncState{Status: SyncSynced},
	}
	for _, o := range opts {
		o(a)
	}
	a.log = logger.OrNop(a.log).With("component", "progress")

	a.journey = NewJourney(outline.JourneyID)
	seed(a.journey, outline)
	recomputeAll(a.journey)
	return a
}

// Snapshot returns a deep copy of the current tree.
func (a *Aggregator) Snapshot() *JourneyProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.journey.Clone()
}

// SyncState returns the current persistence bookkeeping.
func (a *Aggregator) SyncState() SyncState {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.sync
	s.LastSaved = cloneTime(a.sync.LastSaved)
	return s
}

// ApplyLessonStart records that a lesson was opened. A lesson that already
// has progress is left untouched; in particular a completed lesson never
// regresses to in progress.
func (a *Aggregator) ApplyLessonStart(stageID, lessonID string) (*JourneyProgress, error) {
	if err := validateIDs(stageID, lessonID); err != nil {
		return nil, err
	}
	return a.mutate(func(j *JourneyProgress, now time.Time) error {
		s := ensureStage(j, stageID)
		ensurePlanned(s, lessonID)
		if s.Lesson(lessonID) == nil {
			s.Lessons = append(s.Lessons, LessonProgress{
				LessonID: lessonID,
				Status:   StatusInProgress,
				Attempts: 1,
			})
		}
		recomputeStage(s)
		recomputeJourney(j)
		return nil
	})
}

// ApplyLessonComplete records a completed lesson. The score is clamped to
// [0,100] and a negative time to 0. timeSpent replaces the previous value:
// it is this completion's total. Re-applying an identical completion keeps
// the original completion time.
func (a *Aggregator) ApplyLessonComplete(stageID, lessonID string, score float64, timeSpent int) (*JourneyProgress, error) {
	if err := validateIDs(stageID, lessonID); err != nil {
		return nil, err
	}
	clamped := clampScore(score)
	if clamped != score {
		a.log.Debug("lesson score clamped", "lesson_id", lessonID, "score", score, "clamped", clamped)
	}
	if timeSpent < 0 {
		a.log.Debug("negative lesson time clamped", "lesson_id", lessonID, "time_spent", timeSpent)
		timeSpent = 0
	}

	return a.mutate(func(j *JourneyProgress, now time.Time) error {
		s := ensureStage(j, stageID)
		ensurePlanned(s, lessonID)

		lp := s.Lesson(lessonID)
		if lp == nil {
			s.Lessons = append(s.Lessons, LessonProgress{LessonID: lessonID, Attempts: 1})
			lp = &s.Lessons[len(s.Lessons)-1]
		}
		unchanged := lp.Status == StatusCompleted && lp.Score == clamped && lp.TimeSpent == timeSpent
		lp.Status = StatusCompleted
		lp.Score = clamped
		lp.TimeSpent = timeSpent
		if !unchanged || lp.CompletedAt == nil {
			t := now
			lp.CompletedAt = &t
		}

		recomputeStage(s)
		recomputeJourney(j)
		return nil
	})
}

// SetCurrentPosition moves the learner's pointers. Both ids empty clears
// them; ids not present in the tree yield ErrStaleReference.
func (a *Aggregator) SetCurrentPosition(stageID, lessonID string) (*JourneyProgress, error) {
	return a.mutate(func(j *JourneyProgress, now time.Time) error {
		if stageID == "" && lessonID == "" {
			j.CurrentStageID, j.CurrentLessonID = "", ""
			return nil
		}
		s := j.Stage(stageID)
		if s == nil {
			return fmt.Errorf("%w: stage %q", ErrStaleReference, stageID)
		}
		if lessonID != "" && !slices.Contains(s.LessonIDs, lessonID) && s.Lesson(lessonID) == nil {
			return fmt.Errorf("%w: lesson %q in stage %q", ErrStaleReference, lessonID, stageID)
		}
		j.CurrentStageID, j.CurrentLessonID = stageID, lessonID
		return nil
	})
}

// RecordFinalExam stores a stage's final exam outcome. It does not affect
// stage status.
func (a *Aggregator) RecordFinalExam(stageID string, res FinalExamResult) (*JourneyProgress, error) {
	if strings.TrimSpace(stageID) == "" {
		return nil, &ValidationError{Field: "stageID", Reason: "must not be empty"}
	}
	res.Score = clampScore(res.Score)
	return a.mutate(func(j *JourneyProgress, now time.Time) error {
		s := j.Stage(stageID)
		if s == nil {
			return fmt.Errorf("%w: stage %q", ErrStaleReference, stageID)
		}
		if res.CompletedAt.IsZero() {
			res.CompletedAt = now
		}
		r := res
		s.FinalExam = &r
		return nil
	})
}

// Reset discards all progress, keeping the planned curriculum. This is the
// only operation that lowers accumulated time.
func (a *Aggregator) Reset() *JourneyProgress {
	a.mu.Lock()
	defer a.mu.Unlock()
	j := NewJourney(a.journey.JourneyID)
	seed(j, a.outline)
	recomputeAll(j)
	j.LastActivity = a.now()
	a.journey = j
	a.markDirtyLocked()
	a.log.Info("progress reset", "journey_id", j.JourneyID)
	return j.Clone()
}

// Save pushes a snapshot of the tree to the repository. The tree stays
// readable and writable while the save is in flight. Failures are returned
// as *SyncError and leave the tree dirty; there is no automatic retry.
func (a *Aggregator) Save(ctx context.Context) error {
	a.mu.Lock()
	snap := a.journey.Clone()
	rev := a.rev
	a.mu.Unlock()

	if a.repo == nil {
		return a.saveFailed(&SyncError{Op: "save", Err: fmt.Errorf("no repository configured")})
	}
	if err := a.repo.SaveProgress(ctx, snap); err != nil {
		return a.saveFailed(&SyncError{Op: "save", Err: err})
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.sync.LastSaved = &now
	a.sync.LastError = ""
	if a.rev == rev {
		a.sync.IsDirty = false
		a.sync.Status = SyncSynced
	} else {
		// Mutated while saving: the stored copy is already behind.
		a.sync.Status = SyncPending
	}
	a.log.Debug("progress saved", "journey_id", snap.JourneyID, "dirty", a.sync.IsDirty)
	return nil
}

func (a *Aggregator) saveFailed(err *SyncError) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sync.Status = SyncFailed
	a.sync.LastError = err.Error()
	a.log.Warn("progress save failed", "error", err.Err)
	return err
}

// Load replaces the tree with the persisted progress for journeyID, or a
// fresh not-started journey when none exists. On failure the current tree
// is kept.
func (a *Aggregator) Load(ctx context.Context, journeyID string) error {
	if strings.TrimSpace(journeyID) == "" {
		return &ValidationError{Field: "journeyID", Reason: "must not be empty"}
	}
	if a.repo == nil {
		return &SyncError{Op: "load", Err: fmt.Errorf("no repository configured")}
	}

	loaded, err := a.repo.LoadProgress(ctx, journeyID)
	if err != nil {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.sync.Status = SyncFailed
		a.sync.LastError = err.Error()
		a.log.Warn("progress load failed", "journey_id", journeyID, "error", err)
		return &SyncError{Op: "load", Err: err}
	}

	fresh := loaded == nil
	if fresh {
		loaded = NewJourney(journeyID)
	} else {
		loaded = loaded.Clone()
		loaded.JourneyID = journeyID
	}

	var fixes []string
	if !fresh {
		fixes = Normalize(loaded)
		if len(fixes) > 0 {
			a.log.Warn("loaded progress repaired", "journey_id", journeyID, "fixes", fixes)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	changed := seed(loaded, a.outline) || len(fixes) > 0
	dropStalePointers(loaded)
	recomputeAll(loaded)

	a.journey = loaded
	a.rev++
	a.sync = SyncState{Status: SyncSynced}
	if changed && !fresh {
		a.sync.IsDirty = true
		a.sync.Status = SyncPending
	}
	a.log.Info("progress loaded", "journey_id", journeyID, "fresh", fresh, "status", loaded.Status)
	return nil
}

// mutate applies fn under the lock, stamps activity and marks the tree
// dirty. On error the tree is left as fn left it; fn must only fail before
// modifying anything.
func (a *Aggregator) mutate(fn func(j *JourneyProgress, now time.Time) error) (*JourneyProgress, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	if err := fn(a.journey, now); err != nil {
		return nil, err
	}
	a.journey.LastActivity = now
	a.markDirtyLocked()
	return a.journey.Clone(), nil
}

func (a *Aggregator) markDirtyLocked() {
	a.rev++
	a.sync.IsDirty = true
	a.sync.Status = SyncPending
}

func validateIDs(stageID, lessonID string) error {
	if strings.TrimSpace(stageID) == "" {
		return &ValidationError{Field: "stageID", Reason: "must not be empty"}
	}
	if strings.TrimSpace(lessonID) == "" {
		return &ValidationError{Field: "lessonID", Reason: "must not be empty"}
	}
	return nil
}

// ensureStage returns the stage, appending an empty one when missing.
func ensureStage(j *JourneyProgress, stageID string) *StageProgress {
	if s := j.Stage(stageID); s != nil {
		return s
	}
	j.Stages = append(j.Stages, StageProgress{
		StageID:   stageID,
		Status:    StatusNotStarted,
		LessonIDs: []string{},
		Lessons:   []LessonProgress{},
	})
	return &j.Stages[len(j.Stages)-1]
}

func ensurePlanned(s *StageProgress, lessonID string) {
	if !slices.Contains(s.LessonIDs, lessonID) {
		s.LessonIDs = append(s.LessonIDs, lessonID)
	}
}

// seed merges the outline into the tree: missing stages are appended and
// missing planned lessons added. Returns whether anything changed.
func seed(j *JourneyProgress, o Outline) bool {
	changed := false
	for _, so := range o.Stages {
		if j.Stage(so.ID) == nil {
			changed = true
		}
		s := ensureStage(j, so.ID)
		for _, id := range so.LessonIDs {
			if !slices.Contains(s.LessonIDs, id) {
				s.LessonIDs = append(s.LessonIDs, id)
				changed = true
			}
		}
	}
	return changed
}

// dropStalePointers clears current-position pointers that no longer
// resolve.
func dropStalePointers(j *JourneyProgress) {
	if j.CurrentStageID == "" {
		j.CurrentLessonID = ""
		return
	}
	s := j.Stage(j.CurrentStageID)
	if s == nil {
		j.CurrentStageID, j.CurrentLessonID = "", ""
		return
	}
	if j.CurrentLessonID != "" && !slices.Contains(s.LessonIDs, j.CurrentLessonID) && s.Lesson(j.CurrentLessonID) == nil {
		j.CurrentLessonID = ""
	}
}
