// Package content holds the curriculum definitions (stages, days, questions,
// final tests) and the provider that serves them to the engine.
package content

import "time"

// QuestionType identifies a question family. Assessment sections are formed
// by grouping questions of the same type.
type QuestionType string

const (
	TypePhotographs         QuestionType = "photographs"
	TypeQuestionResponse    QuestionType = "question_response"
	TypeConversations       QuestionType = "conversations"
	TypeTalks               QuestionType = "talks"
	TypeIncompleteSentences QuestionType = "incomplete_sentences"
	TypeTextCompletion      QuestionType = "text_completion"
	TypeReading             QuestionType = "reading"
)

// DefaultFinalTestDuration is used when a final test does not declare one.
const DefaultFinalTestDuration = 30 * time.Minute

// Item is a single answerable sub-question. Questions built around one
// passage or recording carry several items.
type Item struct {
	ID      string   `json:"id"`
	Text    string   `json:"text,omitempty"`
	Options []string `json:"options,omitempty"`
	Answer  string   `json:"answer"`
}

// Question is one prompt (optionally with audio/image) and its items.
type Question struct {
	ID       string       `json:"id"`
	Type     QuestionType `json:"type"`
	Prompt   string       `json:"prompt,omitempty"`
	AudioURL string       `json:"audioUrl,omitempty"`
	ImageURL string       `json:"imageUrl,omitempty"`
	Items    []Item       `json:"items"`
}

func (q Question) HasAudio() bool { return q.AudioURL != "" }
func (q Question) HasImage() bool { return q.ImageURL != "" }

// Day is the smallest schedulable unit. Its ID doubles as the lesson id in
// the progress tree.
type Day struct {
	ID        string     `json:"id"`
	Number    int        `json:"number"`
	Title     string     `json:"title,omitempty"`
	Questions []Question `json:"questions"`
}

// FinalTest gates a stage. MinScore is a percentage in [0,100].
type FinalTest struct {
	DurationSeconds int        `json:"durationSeconds,omitempty"`
	MinScore        float64    `json:"minScore"`
	Questions       []Question `json:"questions"`
}

// Duration returns the test time limit.
func (f FinalTest) Duration() time.Duration {
	if f.DurationSeconds <= 0 {
		return DefaultFinalTestDuration
	}
	return time.Duration(f.DurationSeconds) * time.Second
}

// Stage is a graded band of the curriculum. TargetScore is the proficiency
// number shown to learners (300-990); it is never a pass threshold.
type Stage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	TargetScore int       `json:"targetScore"`
	Days        []Day     `json:"days"`
	FinalTest   FinalTest `json:"finalTest"`
}

// Bundle is a complete curriculum as shipped in a content file.
type Bundle struct {
	Version   string  `json:"version"`
	JourneyID string  `json:"journeyId"`
	Stages    []Stage `json:"stages"`
}
