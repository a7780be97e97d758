package assessment

import (
	"context"
	"strings"
	"time"

	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/unlock"
)

// SubmitReason tells a voluntary submission from a forced one.
type SubmitReason string

const (
	ReasonVoluntary SubmitReason = "voluntary"
	ReasonTimeout   SubmitReason = "timeout"
)

// Answer is one item's outcome in a submission.
type Answer struct {
	QuestionID    string `json:"questionId"`
	ItemID        string `json:"itemId"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	IsNotAnswer   bool   `json:"isNotAnswer"`
}

// SectionAnswers groups the answers of one section.
type SectionAnswers struct {
	Type    content.QuestionType `json:"type"`
	Answers []Answer             `json:"answers"`
}

// Submission is the payload handed to a Submitter.
type Submission struct {
	SessionID   string           `json:"sessionId"`
	StageID     string           `json:"stageId"`
	Reason      SubmitReason     `json:"reason"`
	Sections    []SectionAnswers `json:"sections"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// Clone returns a deep copy.
func (s *Submission) Clone() *Submission {
	c := *s
	c.Sections = make([]SectionAnswers, len(s.Sections))
	for i, sa := range s.Sections {
		sa.Answers = append([]Answer(nil), sa.Answers...)
		c.Sections[i] = sa
	}
	return &c
}

// Result is the graded outcome of a submission.
type Result struct {
	SessionID      string       `json:"sessionId"`
	StageID        string       `json:"stageId"`
	Reason         SubmitReason `json:"reason"`
	Score          float64      `json:"score"` // percentage
	Passed         bool         `json:"passed"`
	CorrectAnswers int          `json:"correctAnswers"`
	TotalQuestions int          `json:"totalQuestions"`
}

// Submitter accepts a finished assessment and returns its graded result.
type Submitter interface {
	SubmitAssessment(ctx context.Context, sub *Submission) (*Result, error)
}

// assemble builds the submission from the buffered answers. Items with no
// buffered answer are marked not answered and incorrect.
func assemble(sections []Section, buffers map[content.QuestionType]map[string]string) []SectionAnswers {
	out := make([]SectionAnswers, 0, len(sections))
	for _, s := range sections {
		sa := SectionAnswers{Type: s.Type, Answers: []Answer{}}
		buf := buffers[s.Type]
		for _, q := range s.Questions {
			for _, it := range q.Items {
				sa.Answers = append(sa.Answers, gradeItem(q.ID, it, buf[it.ID]))
			}
		}
		out = append(out, sa)
	}
	return out
}

func gradeItem(questionID string, it content.Item, userAnswer string) Answer {
	a := Answer{
		QuestionID:    questionID,
		ItemID:        it.ID,
		UserAnswer:    userAnswer,
		CorrectAnswer: it.Answer,
	}
	if strings.TrimSpace(userAnswer) == "" {
		a.UserAnswer = ""
		a.IsNotAnswer = true
		return a
	}
	a.IsCorrect = strings.EqualFold(strings.TrimSpace(userAnswer), strings.TrimSpace(it.Answer))
	return a
}

// Regrade rebuilds the submission's answers from the authoritative
// questions. Every test item is graded exactly once: the first answer a
// client sent for an item wins, items it left out count as not answered,
// and answers for unknown items are dropped. Client-supplied correctness
// is never trusted.
func Regrade(sub *Submission, questions []content.Question) {
	given := make(map[string]string)
	for _, s := range sub.Sections {
		for _, a := range s.Answers {
			if _, seen := given[a.ItemID]; !seen {
				given[a.ItemID] = a.UserAnswer
			}
		}
	}

	sections := BuildSections(questions)
	buffers := make(map[content.QuestionType]map[string]string, len(sections))
	for _, s := range sections {
		buf := make(map[string]string)
		for _, q := range s.Questions {
			for _, it := range q.Items {
				if v, ok := given[it.ID]; ok {
					buf[it.ID] = v
				}
			}
		}
		buffers[s.Type] = buf
	}
	sub.Sections = assemble(sections, buffers)
}

// Grade scores a submission against minScore, a percentage.
func Grade(sub *Submission, minScore float64) *Result {
	correct, total := 0, 0
	for _, s := range sub.Sections {
		for _, a := range s.Answers {
			total++
			if a.IsCorrect {
				correct++
			}
		}
	}
	score := unlock.Percentage(correct, total)
	return &Result{
		SessionID:      sub.SessionID,
		StageID:        sub.StageID,
		Reason:         sub.Reason,
		Score:          score,
		Passed:         unlock.IsStagePassed(score, minScore),
		CorrectAnswers: correct,
		TotalQuestions: total,
	}
}
