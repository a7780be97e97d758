// Package practice provides untimed, free navigation over a fixed question
// set with history and bookmarks.
package practice

import (
	"slices"

	"github.com/abhisek/prepcoach/internal/content"
)

// Session tracks the learner's position in a practice set. Filtering is
// done by the caller before the session is built.
type Session struct {
	questions []content.Question
	index     int
	history   []int // every visit, append-only
	trail     []int // visits Back can still return to
	bookmarks map[string]bool
}

// New creates a session positioned on the first question.
func New(questions []content.Question) *Session {
	s := &Session{
		questions: slices.Clone(questions),
		bookmarks: make(map[string]bool),
	}
	if len(s.questions) > 0 {
		s.history = []int{0}
		s.trail = []int{0}
	}
	return s
}

// Len returns the number of questions.
func (s *Session) Len() int { return len(s.questions) }

// Index returns the current question index.
func (s *Session) Index() int { return s.index }

// Current returns the current question; ok is false for an empty set.
func (s *Session) Current() (content.Question, bool) {
	if len(s.questions) == 0 {
		return content.Question{}, false
	}
	return s.questions[s.index], true
}

// Next moves forward one question, stopping at the last.
func (s *Session) Next() int { return s.Goto(s.index + 1) }

// Previous moves back one question, stopping at the first.
func (s *Session) Previous() int { return s.Goto(s.index - 1) }

// Goto moves to index i, clamped into range. Every move that changes the
// position is appended to the history and can be undone with Back.
func (s *Session) Goto(i int) int {
	if len(s.questions) == 0 {
		return 0
	}
	i = max(0, min(i, len(s.questions)-1))
	if i != s.index {
		s.index = i
		s.history = append(s.history, i)
		s.trail = append(s.trail, i)
	}
	return s.index
}

// Back returns to the previously visited question, which need not be
// index-1. It reports false when there is nowhere to go back to.
// The return visit is itself logged in the history.
func (s *Session) Back() bool {
	if len(s.trail) < 2 {
		return false
	}
	s.trail = s.trail[:len(s.trail)-1]
	s.index = s.trail[len(s.trail)-1]
	s.history = append(s.history, s.index)
	return true
}

// History returns every visited index, oldest first. It only grows.
func (s *Session) History() []int { return slices.Clone(s.history) }

// Bookmark marks a question id. Repeated calls have no further effect.
func (s *Session) Bookmark(id string) { s.bookmarks[id] = true }

// Unbookmark removes a mark. Removing an absent mark is a no-op.
func (s *Session) Unbookmark(id string) { delete(s.bookmarks, id) }

// ToggleBookmark flips the mark and returns the new state.
func (s *Session) ToggleBookmark(id string) bool {
	if s.bookmarks[id] {
		delete(s.bookmarks, id)
		return false
	}
	s.bookmarks[id] = true
	return true
}

// IsBookmarked reports whether id is marked.
func (s *Session) IsBookmarked(id string) bool { return s.bookmarks[id] }

// Bookmarks returns the marked ids in question order.
func (s *Session) Bookmarks() []string {
	var out []string
	for _, q := range s.questions {
		if s.bookmarks[q.ID] {
			out = append(out, q.ID)
		}
	}
	return out
}

// Progress returns the position as a percentage, 0 for an empty set.
func (s *Session) Progress() float64 {
	if len(s.questions) == 0 {
		return 0
	}
	return float64(s.index+1) / float64(len(s.questions)) * 100
}

// IsFirst reports whether the current question is the first.
func (s *Session) IsFirst() bool { return s.index == 0 }

// IsLast reports whether the current question is the last.
func (s *Session) IsLast() bool { return len(s.questions) == 0 || s.index == len(s.questions)-1 }
