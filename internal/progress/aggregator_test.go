package progress

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu      sync.Mutex
	saved   map[string]*JourneyProgress
	saveErr error
	loadErr error
	saves   int
	// onSave runs inside SaveProgress, before the copy is stored.
	onSave func()
}

func newMemRepo() *memRepo {
	return &memRepo{saved: map[string]*JourneyProgress{}}
}

func (m *memRepo) LoadProgress(_ context.Context, journeyID string) (*JourneyProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.saved[journeyID].Clone(), nil
}

func (m *memRepo) SaveProgress(_ context.Context, p *JourneyProgress) error {
	if m.onSave != nil {
		m.onSave()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[p.JourneyID] = p.Clone()
	return nil
}

// fakeClock hands out increasing timestamps one second apart.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func oneStageOutline() Outline {
	return Outline{
		JourneyID: "toeic",
		Stages: []StageOutline{
			{ID: "stage-450", LessonIDs: []string{"d1", "d2", "d3"}},
		},
	}
}

func twoStageOutline() Outline {
	return Outline{
		JourneyID: "toeic",
		Stages: []StageOutline{
			{ID: "stage-450", LessonIDs: []string{"d1", "d2", "d3"}},
			{ID: "stage-600", LessonIDs: []string{"e1", "e2"}},
		},
	}
}

func newTestAggregator(repo Repository, o Outline) *Aggregator {
	return NewAggregator(repo, o, WithClock(newClock().Now))
}

func TestNewAggregator_SeedsNotStartedTree(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())
	j := a.Snapshot()

	assert.Equal(t, "toeic", j.JourneyID)
	assert.Equal(t, StatusNotStarted, j.Status)
	assert.Zero(t, j.OverallScore)
	require.Len(t, j.Stages, 1)
	assert.Equal(t, []string{"d1", "d2", "d3"}, j.Stages[0].LessonIDs)
	assert.Equal(t, StatusNotStarted, j.Stages[0].Status)

	st := a.SyncState()
	assert.False(t, st.IsDirty)
	assert.Equal(t, SyncSynced, st.Status)
}

func TestApplyLessonComplete_FirstDay(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	j, err := a.ApplyLessonComplete("stage-450", "d1", 80, 600)
	require.NoError(t, err)

	s := j.Stage("stage-450")
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Equal(t, 80.0, s.OverallScore)
	assert.Equal(t, 600, s.TimeSpent)
	assert.Nil(t, s.CompletedAt)
	assert.Equal(t, StatusInProgress, j.Status)
	assert.Equal(t, 0.0, j.OverallScore, "no stage completed yet")

	lp := s.Lesson("d1")
	require.NotNil(t, lp)
	assert.Equal(t, StatusCompleted, lp.Status)
	assert.NotNil(t, lp.CompletedAt)
	assert.Equal(t, 1, lp.Attempts)
}

func TestApplyLessonComplete_AllDays(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	for i, sc := range []float64{80, 70, 90} {
		_, err := a.ApplyLessonComplete("stage-450", []string{"d1", "d2", "d3"}[i], sc, 100)
		require.NoError(t, err)
	}
	j := a.Snapshot()
	s := j.Stage("stage-450")

	assert.Equal(t, StatusCompleted, s.Status)
	assert.InDelta(t, 80.0, s.OverallScore, 1e-9)
	assert.Equal(t, 300, s.TimeSpent)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, *s.Lesson("d3").CompletedAt, *s.CompletedAt)

	assert.Equal(t, StatusCompleted, j.Status)
	assert.InDelta(t, 80.0, j.OverallScore, 1e-9)
	require.NotNil(t, j.CompletedAt)
}

func TestApplyLessonComplete_MeanExcludesUnfinished(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	_, err := a.ApplyLessonComplete("stage-450", "d1", 60, 10)
	require.NoError(t, err)
	_, err = a.ApplyLessonStart("stage-450", "d2")
	require.NoError(t, err)
	j, err := a.ApplyLessonComplete("stage-450", "d3", 100, 20)
	require.NoError(t, err)

	s := j.Stage("stage-450")
	assert.Equal(t, 80.0, s.OverallScore)
	assert.Equal(t, StatusInProgress, s.Status)
	assert.Equal(t, 30, s.TimeSpent)
}

func TestApplyLessonComplete_Idempotent(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	once, err := a.ApplyLessonComplete("stage-450", "d1", 75, 300)
	require.NoError(t, err)
	twice, err := a.ApplyLessonComplete("stage-450", "d1", 75, 300)
	require.NoError(t, err)

	// LastActivity records the second call; everything else is equal.
	twice.LastActivity = once.LastActivity
	assert.Equal(t, once, twice)
	assert.Equal(t, 300, twice.TimeSpent)
	assert.Len(t, twice.Stage("stage-450").Lessons, 1)
}

func TestApplyLessonComplete_RetakeReplaces(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	_, err := a.ApplyLessonComplete("stage-450", "d1", 50, 300)
	require.NoError(t, err)
	j, err := a.ApplyLessonComplete("stage-450", "d1", 90, 200)
	require.NoError(t, err)

	lp := j.Stage("stage-450").Lesson("d1")
	assert.Equal(t, 90.0, lp.Score)
	assert.Equal(t, 200, lp.TimeSpent, "timeSpent is replaced, not added")
	assert.Equal(t, 1, lp.Attempts, "attempts stays at 1 on retake")
}

func TestApplyLessonComplete_Clamps(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		timeSpent int
		wantScore float64
		wantTime  int
	}{
		{"over 100", 140, 10, 100, 10},
		{"negative score", -5, 10, 0, 10},
		{"NaN", math.NaN(), 10, 0, 10},
		{"negative time", 50, -30, 50, 0},
		{"in range", 42.5, 90, 42.5, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAggregator(nil, oneStageOutline())
			j, err := a.ApplyLessonComplete("stage-450", "d1", tt.score, tt.timeSpent)
			require.NoError(t, err)
			lp := j.Stage("stage-450").Lesson("d1")
			assert.Equal(t, tt.wantScore, lp.Score)
			assert.Equal(t, tt.wantTime, lp.TimeSpent)
		})
	}
}

func TestApplyLessonComplete_RejectsEmptyIDs(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	_, err := a.ApplyLessonComplete("", "d1", 50, 10)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "stageID", ve.Field)

	_, err = a.ApplyLessonStart("stage-450", "  ")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lessonID", ve.Field)

	assert.False(t, a.SyncState().IsDirty, "rejected input must not dirty the tree")
}

func TestApplyLessonStart(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	j, err := a.ApplyLessonStart("stage-450", "d1")
	require.NoError(t, err)
	lp := j.Stage("stage-450").Lesson("d1")
	require.NotNil(t, lp)
	assert.Equal(t, StatusInProgress, lp.Status)
	assert.Zero(t, lp.Score)
	assert.Equal(t, 1, lp.Attempts)
	assert.Equal(t, StatusInProgress, j.Stage("stage-450").Status)
	assert.Equal(t, StatusInProgress, j.Status)
}

func TestApplyLessonStart_DoesNotRegressCompleted(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	_, err := a.ApplyLessonComplete("stage-450", "d1", 85, 120)
	require.NoError(t, err)
	j, err := a.ApplyLessonStart("stage-450", "d1")
	require.NoError(t, err)

	lp := j.Stage("stage-450").Lesson("d1")
	assert.Equal(t, StatusCompleted, lp.Status)
	assert.Equal(t, 85.0, lp.Score)
	assert.Equal(t, 120, lp.TimeSpent)
}

func TestApplyLessonStart_UnplannedLessonAndStage(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	j, err := a.ApplyLessonStart("bonus", "b1")
	require.NoError(t, err)
	s := j.Stage("bonus")
	require.NotNil(t, s)
	assert.Equal(t, []string{"b1"}, s.LessonIDs)
	assert.Equal(t, StatusInProgress, s.Status)
}

func TestStatusPurity(t *testing.T) {
	a := newTestAggregator(nil, twoStageOutline())

	ops := []struct {
		stage, lesson string
		complete      bool
	}{
		{"stage-450", "d1", true},
		{"stage-600", "e1", false},
		{"stage-450", "d2", true},
		{"stage-450", "d3", true},
		{"stage-600", "e1", true},
		{"stage-600", "e2", true},
	}
	for _, op := range ops {
		var err error
		if op.complete {
			_, err = a.ApplyLessonComplete(op.stage, op.lesson, 70, 60)
		} else {
			_, err = a.ApplyLessonStart(op.stage, op.lesson)
		}
		require.NoError(t, err)
		checkInvariants(t, a.Snapshot())
	}
	assert.Equal(t, StatusCompleted, a.Snapshot().Status)
}

// checkInvariants asserts status, score and time purity across the tree.
func checkInvariants(t *testing.T, j *JourneyProgress) {
	t.Helper()
	allStages := len(j.Stages) > 0
	journeyTime := 0
	for _, s := range j.Stages {
		allLessons := len(s.LessonIDs) > 0
		var sum float64
		n, stageTime := 0, 0
		for _, id := range s.LessonIDs {
			if s.LessonStatus(id) != StatusCompleted {
				allLessons = false
			}
		}
		for _, l := range s.Lessons {
			stageTime += l.TimeSpent
			if l.Status == StatusCompleted {
				sum += l.Score
				n++
			}
		}
		assert.Equal(t, allLessons, s.Status == StatusCompleted, "stage %s status", s.StageID)
		assert.Equal(t, stageTime, s.TimeSpent, "stage %s time", s.StageID)
		if n > 0 {
			assert.InDelta(t, sum/float64(n), s.OverallScore, 1e-9, "stage %s score", s.StageID)
		} else {
			assert.Zero(t, s.OverallScore)
		}
		if s.Status != StatusCompleted {
			allStages = false
		}
		journeyTime += s.TimeSpent
	}
	assert.Equal(t, allStages, j.Status == StatusCompleted, "journey status")
	assert.Equal(t, journeyTime, j.TimeSpent, "journey time")
}

func TestZeroLessonStageNeverCompleted(t *testing.T) {
	o := Outline{JourneyID: "j", Stages: []StageOutline{{ID: "empty"}}}
	a := newTestAggregator(nil, o)
	j := a.Snapshot()
	assert.Equal(t, StatusNotStarted, j.Stage("empty").Status)
	assert.Equal(t, StatusNotStarted, j.Status)
}

func TestTimeMonotonicUntilReset(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	prev := 0
	for _, id := range []string{"d1", "d2", "d3"} {
		j, err := a.ApplyLessonComplete("stage-450", id, 70, 100)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, j.TimeSpent, prev)
		prev = j.TimeSpent
	}
	assert.Equal(t, 300, prev)

	j := a.Reset()
	assert.Zero(t, j.TimeSpent)
	assert.Equal(t, StatusNotStarted, j.Status)
	assert.Equal(t, []string{"d1", "d2", "d3"}, j.Stage("stage-450").LessonIDs)
	assert.True(t, a.SyncState().IsDirty)
}

func TestSetCurrentPosition(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	j, err := a.SetCurrentPosition("stage-450", "d2")
	require.NoError(t, err)
	assert.Equal(t, "stage-450", j.CurrentStageID)
	assert.Equal(t, "d2", j.CurrentLessonID)

	_, err = a.SetCurrentPosition("stage-999", "d1")
	assert.ErrorIs(t, err, ErrStaleReference)

	_, err = a.SetCurrentPosition("stage-450", "zz")
	assert.ErrorIs(t, err, ErrStaleReference)

	// Failed moves leave the pointers alone.
	j = a.Snapshot()
	assert.Equal(t, "d2", j.CurrentLessonID)

	j, err = a.SetCurrentPosition("", "")
	require.NoError(t, err)
	assert.Empty(t, j.CurrentStageID)
	assert.Empty(t, j.CurrentLessonID)
}

func TestRecordFinalExam(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())

	j, err := a.RecordFinalExam("stage-450", FinalExamResult{Score: 120, Passed: true, Correct: 4, Total: 4})
	require.NoError(t, err)
	fe := j.Stage("stage-450").FinalExam
	require.NotNil(t, fe)
	assert.Equal(t, 100.0, fe.Score)
	assert.False(t, fe.CompletedAt.IsZero())
	assert.Equal(t, StatusNotStarted, j.Stage("stage-450").Status, "exam does not change stage status")

	_, err = a.RecordFinalExam("nope", FinalExamResult{})
	assert.ErrorIs(t, err, ErrStaleReference)
}

func TestSnapshotIsACopy(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())
	_, err := a.ApplyLessonComplete("stage-450", "d1", 80, 60)
	require.NoError(t, err)

	j := a.Snapshot()
	j.Stages[0].Lessons[0].Score = 0
	*j.Stages[0].Lessons[0].CompletedAt = time.Time{}

	again := a.Snapshot()
	assert.Equal(t, 80.0, again.Stages[0].Lessons[0].Score)
	assert.False(t, again.Stages[0].Lessons[0].CompletedAt.IsZero())
}

func TestSave_Success(t *testing.T) {
	repo := newMemRepo()
	a := newTestAggregator(repo, oneStageOutline())
	_, err := a.ApplyLessonComplete("stage-450", "d1", 80, 60)
	require.NoError(t, err)

	st := a.SyncState()
	assert.True(t, st.IsDirty)
	assert.Equal(t, SyncPending, st.Status)

	require.NoError(t, a.Save(context.Background()))
	st = a.SyncState()
	assert.False(t, st.IsDirty)
	assert.Equal(t, SyncSynced, st.Status)
	require.NotNil(t, st.LastSaved)
	assert.Empty(t, st.LastError)
}

func TestSave_Failure(t *testing.T) {
	repo := newMemRepo()
	repo.saveErr = errors.New("network down")
	a := newTestAggregator(repo, oneStageOutline())
	_, err := a.ApplyLessonComplete("stage-450", "d1", 80, 60)
	require.NoError(t, err)

	err = a.Save(context.Background())
	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "save", se.Op)
	assert.ErrorIs(t, err, repo.saveErr)

	st := a.SyncState()
	assert.True(t, st.IsDirty)
	assert.Equal(t, SyncFailed, st.Status)
	assert.Nil(t, st.LastSaved)
	assert.Contains(t, st.LastError, "network down")
	assert.Equal(t, 1, repo.saves, "no automatic retry")

	// The tree remains usable after a failed save.
	_, err = a.ApplyLessonComplete("stage-450", "d2", 90, 60)
	require.NoError(t, err)
	assert.Equal(t, SyncPending, a.SyncState().Status)

	repo.saveErr = nil
	require.NoError(t, a.Save(context.Background()))
	assert.Equal(t, SyncSynced, a.SyncState().Status)
}

func TestSave_NoRepository(t *testing.T) {
	a := newTestAggregator(nil, oneStageOutline())
	var se *SyncError
	require.ErrorAs(t, a.Save(context.Background()), &se)
	assert.Equal(t, SyncFailed, a.SyncState().Status)
}

func TestSave_MutationDuringSaveStaysDirty(t *testing.T) {
	repo := newMemRepo()
	a := newTestAggregator(repo, oneStageOutline())
	_, err := a.ApplyLessonComplete("stage-450", "d1", 80, 60)
	require.NoError(t, err)

	repo.onSave = func() {
		repo.onSave = nil
		_, err := a.ApplyLessonComplete("stage-450", "d2", 70, 60)
		require.NoError(t, err)
	}
	require.NoError(t, a.Save(context.Background()))

	st := a.SyncState()
	assert.True(t, st.IsDirty)
	assert.Equal(t, SyncPending, st.Status)
	assert.NotNil(t, st.LastSaved)

	// The stored copy predates the concurrent mutation.
	stored := repo.saved["toeic"]
	assert.Nil(t, stored.Stage("stage-450").Lesson("d2"))
}

func TestLoad_FreshJourney(t *testing.T) {
	a := newTestAggregator(newMemRepo(), oneStageOutline())
	require.NoError(t, a.Load(context.Background(), "toeic"))

	j := a.Snapshot()
	assert.Equal(t, StatusNotStarted, j.Status)
	assert.Len(t, j.Stages, 1)
	st := a.SyncState()
	assert.False(t, st.IsDirty)
	assert.Equal(t, SyncSynced, st.Status)
}

func TestLoad_Failure(t *testing.T) {
	repo := newMemRepo()
	repo.loadErr = errors.New("disk on fire")
	a := newTestAggregator(repo, oneStageOutline())
	_, err := a.ApplyLessonComplete("stage-450", "d1", 80, 60)
	require.NoError(t, err)

	err = a.Load(context.Background(), "toeic")
	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "load", se.Op)
	assert.Equal(t, SyncFailed, a.SyncState().Status)
	assert.Equal(t, 80.0, a.Snapshot().Stage("stage-450").OverallScore, "local tree kept")

	assert.Error(t, a.Load(context.Background(), ""))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()

	a := newTestAggregator(repo, twoStageOutline())
	for _, id := range []string{"d1", "d2", "d3"} {
		_, err := a.ApplyLessonComplete("stage-450", id, 88, 120)
		require.NoError(t, err)
	}
	_, err := a.ApplyLessonStart("stage-600", "e1")
	require.NoError(t, err)
	_, err = a.SetCurrentPosition("stage-600", "e1")
	require.NoError(t, err)
	require.NoError(t, a.Save(ctx))

	b := newTestAggregator(repo, twoStageOutline())
	require.NoError(t, b.Load(ctx, "toeic"))

	want, got := a.Snapshot(), b.Snapshot()
	assert.Equal(t, want.Status, got.Status)
	assert.Equal(t, want.OverallScore, got.OverallScore)
	assert.Equal(t, want.TimeSpent, got.TimeSpent)
	assert.Equal(t, want.CurrentStageID, got.CurrentStageID)
	assert.Equal(t, want.CurrentLessonID, got.CurrentLessonID)
	for i := range want.Stages {
		assert.Equal(t, want.Stages[i].Status, got.Stages[i].Status)
		assert.Equal(t, want.Stages[i].OverallScore, got.Stages[i].OverallScore)
		assert.Equal(t, len(want.Stages[i].Lessons), len(got.Stages[i].Lessons))
	}
	assert.False(t, b.SyncState().IsDirty)
}

func TestLoad_DropsStalePointersAndSeedsNewStages(t *testing.T) {
	repo := newMemRepo()
	old := NewJourney("toeic")
	old.Stages = []StageProgress{{StageID: "retired", LessonIDs: []string{"x"}}}
	old.CurrentStageID = "gone"
	old.CurrentLessonID = "x"
	repo.saved["toeic"] = old

	a := newTestAggregator(repo, oneStageOutline())
	require.NoError(t, a.Load(context.Background(), "toeic"))

	j := a.Snapshot()
	assert.Empty(t, j.CurrentStageID)
	assert.Empty(t, j.CurrentLessonID)
	assert.NotNil(t, j.Stage("stage-450"))
	assert.NotNil(t, j.Stage("retired"))
	assert.True(t, a.SyncState().IsDirty, "seeding a loaded tree needs a save")
}
