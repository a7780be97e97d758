package progress

import (
	"fmt"
	"slices"
	"strings"
)

func validStatus(s Status) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Normalize repairs a tree that came from outside the aggregator: lesson
// scores are clamped to [0,100], negative times floored at 0, unknown
// lesson statuses reset to not_started, duplicate stages and lessons
// dropped (the first one wins) and attempts raised to at least 1. It
// returns one description per correction; derived fields are left to the
// roll-up.
func Normalize(j *JourneyProgress) []string {
	var fixes []string
	fix := func(format string, args ...any) {
		fixes = append(fixes, fmt.Sprintf(format, args...))
	}

	seenStages := make(map[string]bool, len(j.Stages))
	stages := j.Stages[:0]
	for _, s := range j.Stages {
		if seenStages[s.StageID] {
			fix("stage %s: duplicate dropped", s.StageID)
			continue
		}
		seenStages[s.StageID] = true

		if ids := dedupe(s.LessonIDs); len(ids) != len(s.LessonIDs) {
			fix("stage %s: duplicate planned lessons dropped", s.StageID)
			s.LessonIDs = ids
		}

		seen := make(map[string]bool, len(s.Lessons))
		lessons := make([]LessonProgress, 0, len(s.Lessons))
		for _, l := range s.Lessons {
			where := s.StageID + "/" + l.LessonID
			if seen[l.LessonID] {
				fix("lesson %s: duplicate dropped", where)
				continue
			}
			seen[l.LessonID] = true

			if !validStatus(l.Status) {
				fix("lesson %s: unknown status %q", where, l.Status)
				l.Status = StatusNotStarted
			}
			if c := clampScore(l.Score); c != l.Score {
				fix("lesson %s: score %v out of range", where, l.Score)
				l.Score = c
			}
			if l.TimeSpent < 0 {
				fix("lesson %s: negative time spent", where)
				l.TimeSpent = 0
			}
			if l.Attempts < 1 {
				fix("lesson %s: attempts %d", where, l.Attempts)
				l.Attempts = 1
			}
			lessons = append(lessons, l)
		}
		s.Lessons = lessons

		if fe := s.FinalExam; fe != nil {
			if c := clampScore(fe.Score); c != fe.Score {
				fix("stage %s: final exam score %v out of range", s.StageID, fe.Score)
				fe.Score = c
			}
		}
		stages = append(stages, s)
	}
	j.Stages = stages
	return fixes
}

// Validate reports a tree that Normalize would have to repair. It does not
// modify j.
func Validate(j *JourneyProgress) error {
	if fixes := Normalize(j.Clone()); len(fixes) > 0 {
		return &ValidationError{Field: "progress", Reason: strings.Join(fixes, "; ")}
	}
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
