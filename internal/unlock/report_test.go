package unlock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/progress"
)

func loadDefault(t *testing.T) (*content.Bundle, *progress.Aggregator) {
	t.Helper()
	b, err := content.Default()
	require.NoError(t, err)
	return b, progress.NewAggregator(nil, content.OutlineOf(b))
}

func TestEvaluate_FreshJourney(t *testing.T) {
	b, a := loadDefault(t)
	r := Evaluate(a.Snapshot(), b.Stages)

	require.Len(t, r.Stages, 2)
	first, second := r.Stages[0], r.Stages[1]

	assert.True(t, first.Unlocked)
	assert.Equal(t, 450, first.TargetScore)
	assert.Equal(t, 70.0, first.MinScore)
	require.Len(t, first.Days, 3)
	assert.True(t, first.Days[0].Unlocked)
	assert.False(t, first.Days[1].Unlocked)
	assert.False(t, first.FinalExamUnlocked)

	assert.False(t, second.Unlocked)
	assert.False(t, second.Days[0].Unlocked, "locked stage keeps its days locked")
}

func TestEvaluate_StageProgression(t *testing.T) {
	b, a := loadDefault(t)
	for _, id := range []string{"s450-d1", "s450-d2", "s450-d3"} {
		_, err := a.ApplyLessonComplete("stage-450", id, 90, 60)
		require.NoError(t, err)
	}

	r := Evaluate(a.Snapshot(), b.Stages)
	assert.True(t, r.Stage("stage-450").FinalExamUnlocked)
	assert.False(t, r.Stage("stage-600").Unlocked)

	// Failed exam.
	_, err := a.RecordFinalExam("stage-450", progress.FinalExamResult{Score: 65})
	require.NoError(t, err)
	r = Evaluate(a.Snapshot(), b.Stages)
	assert.True(t, r.Stage("stage-450").FinalExamTaken)
	assert.False(t, r.Stage("stage-450").Passed)
	assert.False(t, r.Stage("stage-600").Unlocked)

	// Retake passes exactly at the threshold.
	_, err = a.RecordFinalExam("stage-450", progress.FinalExamResult{Score: 70})
	require.NoError(t, err)
	r = Evaluate(a.Snapshot(), b.Stages)
	assert.True(t, r.Stage("stage-450").Passed)
	assert.True(t, r.Stage("stage-600").Unlocked)
	assert.True(t, r.Stage("stage-600").Days[0].Unlocked)
}

func TestEvaluate_UsesContentMinScoreNotStoredFlag(t *testing.T) {
	b, a := loadDefault(t)
	// A stale Passed flag recorded against an older threshold is ignored.
	_, err := a.RecordFinalExam("stage-450", progress.FinalExamResult{Score: 60, Passed: true})
	require.NoError(t, err)

	r := Evaluate(a.Snapshot(), b.Stages)
	assert.False(t, r.Stage("stage-450").Passed)
	assert.False(t, r.Stage("stage-600").Unlocked)
}

func TestEvaluate_MissingStageInProgress(t *testing.T) {
	b, _ := loadDefault(t)
	j := progress.NewJourney("toeic-foundation")

	r := Evaluate(j, b.Stages)
	st := r.Stage("stage-450")
	require.NotNil(t, st)
	assert.Equal(t, progress.StatusNotStarted, st.Status)
	assert.True(t, st.Unlocked)
	assert.True(t, st.Days[0].Unlocked)
	assert.False(t, st.Days[1].Unlocked)

	assert.Nil(t, r.Stage("nope"))
}

func TestEvaluate_NilJourney(t *testing.T) {
	b, _ := loadDefault(t)
	r := Evaluate(nil, b.Stages)
	assert.Empty(t, r.JourneyID)
	assert.Len(t, r.Stages, 2)
	assert.False(t, r.Stages[1].Unlocked)
}
