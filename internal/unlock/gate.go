// Package unlock decides which days, final exams and stages a learner may
// enter. Every function is pure: it reads a progress snapshot and content
// definitions and never mutates either.
package unlock

import (
	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/progress"
)

// DayRef is the slice of a content day the gates need.
type DayRef struct {
	ID            string
	QuestionCount int
}

// DaysOf converts content days, in the given order, to gate references.
func DaysOf(days []content.Day) []DayRef {
	refs := make([]DayRef, len(days))
	for i, d := range days {
		refs[i] = DayRef{ID: d.ID, QuestionCount: len(d.Questions)}
	}
	return refs
}

// IsDayUnlocked reports whether days[dayIndex] may be opened. The first day
// always may. Any later day needs the nearest earlier day with questions to
// have been started or completed; passing it is not required. Days without
// questions are skipped over.
func IsDayUnlocked(stage *progress.StageProgress, days []DayRef, dayIndex int) bool {
	if dayIndex < 0 || dayIndex >= len(days) {
		return false
	}
	for i := dayIndex - 1; i >= 0; i-- {
		if days[i].QuestionCount == 0 {
			continue
		}
		switch stage.LessonStatus(days[i].ID) {
		case progress.StatusInProgress, progress.StatusCompleted:
			return true
		default:
			return false
		}
	}
	return true
}

// IsFinalExamUnlocked reports whether every day with questions is
// completed. A stage with no such days never unlocks its exam.
func IsFinalExamUnlocked(stage *progress.StageProgress, days []DayRef) bool {
	counted := 0
	for _, d := range days {
		if d.QuestionCount == 0 {
			continue
		}
		counted++
		if stage.LessonStatus(d.ID) != progress.StatusCompleted {
			return false
		}
	}
	return counted > 0
}

// IsStagePassed reports score >= minScore. Both are percentages; a
// minScore outside [0,100] is a target proficiency score passed by mistake
// and never passes.
func IsStagePassed(score, minScore float64) bool {
	if minScore < 0 || minScore > 100 {
		return false
	}
	return score >= minScore
}

// FinalExam is the gate's view of a stage's final exam.
type FinalExam struct {
	Completed bool
	Score     float64 // percentage
	MinScore  float64 // percentage
}

// IsNextStageUnlocked reports whether the stage after the exam's stage is
// open.
func IsNextStageUnlocked(exam FinalExam) bool {
	return exam.Completed && IsStagePassed(exam.Score, exam.MinScore)
}

// Percentage returns correct/total as 0-100, 0 when total is 0.
func Percentage(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
