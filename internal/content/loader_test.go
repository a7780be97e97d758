package content

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalBundle = `{
  "version": "%VERSION%",
  "journeyId": "j1",
  "stages": [
    {
      "id": "s1",
      "title": "One",
      "targetScore": %TARGET%,
      "days": [
        {"id": "d1", "number": 1, "questions": [
          {"id": "q1", "type": "photographs", "items": [{"id": "i1", "answer": "A"}]}
        ]}
      ],
      "finalTest": {"minScore": %MIN%, "questions": [
        {"id": "f1", "type": "reading", "items": [{"id": "%ITEM1%", "answer": "A"}, {"id": "fi2", "answer": "B"}]}
      ]}
    }
  ]
}`

// bundleJSON fills the template; replacements take precedence over the
// defaults because strings.Replacer applies the first matching pair.
func bundleJSON(replacements ...string) []byte {
	pairs := append(replacements,
		"%VERSION%", "v1.2.0",
		"%TARGET%", "450",
		"%MIN%", "70",
		"%ITEM1%", "fi1",
	)
	return []byte(strings.NewReplacer(pairs...).Replace(minimalBundle))
}

func TestDefaultBundle(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "toeic-foundation", b.JourneyID)
	require.Len(t, b.Stages, 2)
	assert.Equal(t, "stage-450", b.Stages[0].ID)
	assert.Equal(t, 70.0, b.Stages[0].FinalTest.MinScore)
	assert.Equal(t, 450, b.Stages[0].TargetScore)
	assert.Len(t, b.Stages[0].Days, 3)
}

func TestParse_Minimal(t *testing.T) {
	b, err := Parse(bundleJSON())
	require.NoError(t, err)
	assert.Equal(t, "j1", b.JourneyID)
	assert.Equal(t, DefaultFinalTestDuration, b.Stages[0].FinalTest.Duration())
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"not json", []byte("{")},
		{"min score over 100", bundleJSON("%MIN%", "450")},
		{"negative min score", bundleJSON("%MIN%", "-1")},
		{"target score below range", bundleJSON("%TARGET%", "70")},
		{"target score above range", bundleJSON("%TARGET%", "1200")},
		{"bad version", bundleJSON("%VERSION%", "one")},
		{"unsupported major", bundleJSON("%VERSION%", "v2.0.0")},
		{"duplicate item id", bundleJSON("%ITEM1%", "fi2")},
		{"missing stages", []byte(`{"version":"v1.0.0","journeyId":"j"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			var ib *ErrInvalidBundle
			assert.True(t, errors.As(err, &ib), "want *ErrInvalidBundle, got %T", err)
		})
	}
}

func TestParse_DuplicateIDs(t *testing.T) {
	dupStage := `{"version":"v1.0.0","journeyId":"j","stages":[
	  {"id":"s","title":"a","targetScore":450,"days":[],"finalTest":{"minScore":70,"questions":[]}},
	  {"id":"s","title":"b","targetScore":600,"days":[],"finalTest":{"minScore":70,"questions":[]}}]}`
	_, err := Parse([]byte(dupStage))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate stage id")

	dupDay := `{"version":"v1.0.0","journeyId":"j","stages":[
	  {"id":"s1","title":"a","targetScore":450,"days":[{"id":"d","number":1,"questions":[]}],"finalTest":{"minScore":70,"questions":[]}},
	  {"id":"s2","title":"b","targetScore":600,"days":[{"id":"d","number":1,"questions":[]}],"finalTest":{"minScore":70,"questions":[]}}]}`
	_, err = Parse([]byte(dupDay))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate day id")

	dupNumber := `{"version":"v1.0.0","journeyId":"j","stages":[
	  {"id":"s1","title":"a","targetScore":450,"days":[{"id":"a","number":1,"questions":[]},{"id":"b","number":1,"questions":[]}],"finalTest":{"minScore":70,"questions":[]}}]}`
	_, err = Parse([]byte(dupNumber))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate day number")
}

func TestLoad_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.json")
	require.NoError(t, os.WriteFile(path, bundleJSON(), 0o644))

	b, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "j1", b.JourneyID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
