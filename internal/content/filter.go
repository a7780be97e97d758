package content

import "slices"

// Filter narrows a question list for practice. Zero value matches everything.
type Filter struct {
	Types    []QuestionType
	HasAudio *bool
	HasImage *bool
}

// Matches reports whether q passes the filter.
func (f Filter) Matches(q Question) bool {
	if len(f.Types) > 0 && !slices.Contains(f.Types, q.Type) {
		return false
	}
	if f.HasAudio != nil && q.HasAudio() != *f.HasAudio {
		return false
	}
	if f.HasImage != nil && q.HasImage() != *f.HasImage {
		return false
	}
	return true
}

// FilterQuestions returns the questions matching f, preserving order.
func FilterQuestions(questions []Question, f Filter) []Question {
	var out []Question
	for _, q := range questions {
		if f.Matches(q) {
			out = append(out, q)
		}
	}
	return out
}

// ItemCount returns the number of answerable items across questions.
func ItemCount(questions []Question) int {
	n := 0
	for _, q := range questions {
		n += len(q.Items)
	}
	return n
}
