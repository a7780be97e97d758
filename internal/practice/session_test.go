package practice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/abhisek/prepcoach/internal/content"
)

func questions(n int) []content.Question {
	qs := make([]content.Question, n)
	for i := range qs {
		qs[i] = content.Question{ID: fmt.Sprintf("q%d", i), Type: content.TypeReading}
	}
	return qs
}

func TestNavigationClamps(t *testing.T) {
	s := New(questions(4))

	assert.True(t, s.IsFirst())
	assert.Equal(t, 0, s.Previous())
	assert.Equal(t, 1, s.Next())
	assert.Equal(t, 3, s.Goto(99))
	assert.True(t, s.IsLast())
	assert.Equal(t, 3, s.Next())
	assert.Equal(t, 0, s.Goto(-5))

	q, ok := s.Current()
	assert.True(t, ok)
	assert.Equal(t, "q0", q.ID)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		n, goTo int
		want    float64
	}{
		{4, 0, 25},
		{4, 1, 50},
		{4, 3, 100},
		{1, 0, 100},
		{0, 0, 0},
	}
	for _, tt := range tests {
		s := New(questions(tt.n))
		s.Goto(tt.goTo)
		assert.Equal(t, tt.want, s.Progress(), "n=%d goto=%d", tt.n, tt.goTo)
	}
}

func TestBackFollowsHistory(t *testing.T) {
	s := New(questions(10))
	s.Goto(7)
	s.Next()
	s.Goto(2)

	assert.Equal(t, []int{0, 7, 8, 2}, s.History())

	assert.True(t, s.Back())
	assert.Equal(t, 8, s.Index(), "back returns to the last visited, not index-1")
	assert.True(t, s.Back())
	assert.Equal(t, 7, s.Index())
	assert.True(t, s.Back())
	assert.Equal(t, 0, s.Index())
	assert.False(t, s.Back())
	assert.Equal(t, 0, s.Index())

	assert.Equal(t, []int{0, 7, 8, 2, 8, 7, 0}, s.History(), "history keeps every visit")
}

func TestBackAfterNewMove(t *testing.T) {
	s := New(questions(10))
	s.Goto(4)
	s.Goto(6)
	assert.True(t, s.Back())
	assert.Equal(t, 4, s.Index())

	s.Goto(9)
	assert.True(t, s.Back())
	assert.Equal(t, 4, s.Index(), "the undone visit to 6 is not revisited")
	assert.True(t, s.Back())
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, []int{0, 4, 6, 4, 9, 4, 0}, s.History())
}

func TestClampedMovesDoNotGrowHistory(t *testing.T) {
	s := New(questions(2))
	s.Previous()
	s.Goto(-1)
	assert.Equal(t, []int{0}, s.History())
	s.Next()
	s.Next()
	assert.Equal(t, []int{0, 1}, s.History())
}

func TestBookmarks(t *testing.T) {
	s := New(questions(5))

	s.Bookmark("q3")
	s.Bookmark("q3")
	s.Bookmark("q1")
	assert.Equal(t, []string{"q1", "q3"}, s.Bookmarks())
	assert.True(t, s.IsBookmarked("q3"))

	s.Unbookmark("q3")
	s.Unbookmark("q3")
	assert.False(t, s.IsBookmarked("q3"))

	assert.True(t, s.ToggleBookmark("q4"))
	assert.False(t, s.ToggleBookmark("q4"))
	assert.Equal(t, []string{"q1"}, s.Bookmarks())
}

func TestEmptySession(t *testing.T) {
	s := New(nil)
	_, ok := s.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Next())
	assert.Equal(t, 0, s.Goto(3))
	assert.True(t, s.IsFirst())
	assert.True(t, s.IsLast())
	assert.False(t, s.Back())
	assert.Empty(t, s.History())
}

func TestFilteredSession(t *testing.T) {
	b, err := content.Default()
	assert.NoError(t, err)
	var all []content.Question
	for _, d := range b.Stages[0].Days {
		all = append(all, d.Questions...)
	}
	yes := true
	s := New(content.FilterQuestions(all, content.Filter{HasImage: &yes}))
	assert.Equal(t, 2, s.Len())
	q, _ := s.Current()
	assert.Equal(t, content.TypePhotographs, q.Type)
}
