package unlock

import (
	"slices"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/progress"
)

// DayReport is the unlock state of one day.
type DayReport struct {
	ID       string
	Number   int
	Status   progress.Status
	Unlocked bool
}

// StageReport is the unlock state of one stage.
type StageReport struct {
	StageID           string
	Title             string
	TargetScore       int
	Status            progress.Status
	Unlocked          bool
	Days              []DayReport
	FinalExamUnlocked bool
	FinalExamTaken    bool
	FinalExamScore    float64
	MinScore          float64
	Passed            bool
}

// Report is the unlock state of a whole journey, in content order.
type Report struct {
	JourneyID string
	Stages    []StageReport
}

// Stage returns the report for stageID, or nil.
func (r Report) Stage(stageID string) *StageReport {
	for i := range r.Stages {
		if r.Stages[i].StageID == stageID {
			return &r.Stages[i]
		}
	}
	return nil
}

// Evaluate computes the unlock state of every content stage against a
// progress snapshot. The first stage is always open; every later stage
// opens once the previous stage's final exam is passed. Stages missing
// from the snapshot evaluate as not started.
func Evaluate(j *progress.JourneyProgress, stages []content.Stage) Report {
	r := Report{Stages: make([]StageReport, 0, len(stages))}
	if j != nil {
		r.JourneyID = j.JourneyID
	}

	prevPassed := true
	for i, cs := range stages {
		sp := j.Stage(cs.ID)
		days := slices.Clone(cs.Days)
		slices.SortStableFunc(days, func(a, b content.Day) int { return a.Number - b.Number })
		refs := DaysOf(days)

		sr := StageReport{
			StageID:     cs.ID,
			Title:       cs.Title,
			TargetScore: cs.TargetScore,
			Status:      progress.StatusNotStarted,
			Unlocked:    i == 0 || prevPassed,
			MinScore:    cs.FinalTest.MinScore,
		}
		if sp != nil {
			sr.Status = sp.Status
			if fe := sp.FinalExam; fe != nil {
				sr.FinalExamTaken = true
				sr.FinalExamScore = fe.Score
			}
		}
		sr.Passed = IsNextStageUnlocked(FinalExam{
			Completed: sr.FinalExamTaken,
			Score:     sr.FinalExamScore,
			MinScore:  cs.FinalTest.MinScore,
		})

		for k, d := range days {
			sr.Days = append(sr.Days, DayReport{
				ID:       d.ID,
				Number:   d.Number,
				Status:   sp.LessonStatus(d.ID),
				Unlocked: sr.Unlocked && IsDayUnlocked(sp, refs, k),
			})
		}
		sr.FinalExamUnlocked = sr.Unlocked && IsFinalExamUnlocked(sp, refs)

		r.Stages = append(r.Stages, sr)
		prevPassed = sr.Unlocked && sr.Passed
	}
	return r
}
