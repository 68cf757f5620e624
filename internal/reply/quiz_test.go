// ABOUTME: Tests for quiz payload decoding and scoring
// ABOUTME: Covers single-encoded, double-encoded, and unparseable input

package reply

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const quizJSON = `{"questions":["Q1"],"answers":["A"]}`

func TestDecodeQuiz_SingleEncoded(t *testing.T) {
	q := DecodeQuiz(quizJSON)

	require.Len(t, q.Questions, 1)
	assert.Equal(t, "Q1", q.Questions[0])
	require.Len(t, q.Answers, 1)
	assert.Equal(t, "A", q.Answers[0])
}

func TestDecodeQuiz_DoubleEncoded(t *testing.T) {
	// The same payload, wrapped once more as a JSON string literal.
	doubled, err := json.Marshal(quizJSON)
	require.NoError(t, err)

	q := DecodeQuiz(string(doubled))
	assert.Equal(t, DecodeQuiz(quizJSON), q)
}

func TestDecodeQuiz_NotJSON(t *testing.T) {
	q := DecodeQuiz("not json")

	assert.True(t, q.Empty())
	assert.NotNil(t, q.Questions)
	assert.NotNil(t, q.Answers)
}

func TestDecodeQuiz_StringWrappingGarbage(t *testing.T) {
	q := DecodeQuiz(`"still not json"`)
	assert.True(t, q.Empty())
}

func TestDecodeQuiz_WrongShape(t *testing.T) {
	assert.True(t, DecodeQuiz(`[1,2,3]`).Empty())
	assert.True(t, DecodeQuiz(`42`).Empty())
}

func TestDecodeQuiz_FullPayload(t *testing.T) {
	raw := `{
		"questions": ["Q1", "Q2"],
		"selects": [{"a": "Option A", "b": "Option B"}, {"a": "Yes", "b": "No"}],
		"answers": ["a", "b"],
		"explanations": ["because", "why not"]
	}`

	q := DecodeQuiz(raw)
	require.Len(t, q.Questions, 2)
	require.Len(t, q.Selects, 2)
	assert.Equal(t, "Option B", q.Selects[0]["b"])
	assert.Equal(t, []string{"a", "b"}, q.Answers)
	assert.Equal(t, []string{"because", "why not"}, q.Explanations)
}

func TestScore(t *testing.T) {
	q := QuizPayload{
		Questions: []string{"Q1", "Q2", "Q3"},
		Answers:   []string{"a", "b", "c"},
	}

	// One right, one wrong, one unanswered.
	got := Score(q, map[int]string{0: "a", 1: "c"})
	assert.Equal(t, 1, got)

	assert.Equal(t, 0, Score(q, nil))
	assert.Equal(t, 3, Score(q, map[int]string{0: "a", 1: "b", 2: "c"}))
}

func TestScore_EmptyPayload(t *testing.T) {
	assert.Equal(t, 0, Score(DecodeQuiz("garbage"), map[int]string{0: "a"}))
}
