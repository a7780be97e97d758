package progress

import (
	"math"
	"time"
)

// deriveStatus folds child statuses: completed iff all children are
// completed, in progress iff any child has started. No children means not
// started, never vacuously completed.
func deriveStatus(children []Status) Status {
	if len(children) == 0 {
		return StatusNotStarted
	}
	allDone, anyStarted := true, false
	for _, st := range children {
		if st != StatusCompleted {
			allDone = false
		}
		if st != StatusNotStarted {
			anyStarted = true
		}
	}
	switch {
	case allDone:
		return StatusCompleted
	case anyStarted:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// recomputeStage derives the stage's status, score, time and completion
// time from its planned and recorded lessons.
func recomputeStage(s *StageProgress) {
	statuses := make([]Status, 0, len(s.LessonIDs))
	planned := make(map[string]bool, len(s.LessonIDs))
	for _, id := range s.LessonIDs {
		planned[id] = true
		statuses = append(statuses, s.LessonStatus(id))
	}

	var (
		scoreSum  float64
		completed int
		timeSum   int
		latest    *time.Time
	)
	for _, l := range s.Lessons {
		if !planned[l.LessonID] {
			statuses = append(statuses, l.Status)
		}
		timeSum += l.TimeSpent
		if l.Status == StatusCompleted {
			scoreSum += l.Score
			completed++
			latest = later(latest, l.CompletedAt)
		}
	}

	s.Status = deriveStatus(statuses)
	s.OverallScore = mean(scoreSum, completed)
	s.TimeSpent = timeSum
	if s.Status == StatusCompleted {
		s.CompletedAt = cloneTime(latest)
	} else {
		s.CompletedAt = nil
	}
}

// recomputeJourney derives the journey roll-up from already recomputed
// stages.
func recomputeJourney(j *JourneyProgress) {
	statuses := make([]Status, 0, len(j.Stages))
	var (
		scoreSum  float64
		completed int
		timeSum   int
		latest    *time.Time
	)
	for _, s := range j.Stages {
		statuses = append(statuses, s.Status)
		timeSum += s.TimeSpent
		if s.Status == StatusCompleted {
			scoreSum += s.OverallScore
			completed++
			latest = later(latest, s.CompletedAt)
		}
	}

	j.Status = deriveStatus(statuses)
	j.OverallScore = mean(scoreSum, completed)
	j.TimeSpent = timeSum
	if j.Status == StatusCompleted {
		j.CompletedAt = cloneTime(latest)
	} else {
		j.CompletedAt = nil
	}
}

// recomputeAll rebuilds every derived field in the tree.
func recomputeAll(j *JourneyProgress) {
	for i := range j.Stages {
		recomputeStage(&j.Stages[i])
	}
	recomputeJourney(j)
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func later(a, b *time.Time) *time.Time {
	if b == nil {
		return a
	}
	if a == nil || b.After(*a) {
		return b
	}
	return a
}

// clampScore forces a score into [0,100]; NaN becomes 0.
func clampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
