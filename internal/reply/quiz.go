// ABOUTME: Resilient decoding of structured quiz replies
// ABOUTME: Tolerates single- or double-JSON-encoded payloads, never fails a turn

package reply

import "encoding/json"

// QuizPayload is the structured form of a quiz-generation reply. Slices are
// aligned by index with Questions; Selects and Explanations may be shorter or
// absent.
type QuizPayload struct {
	Questions    []string            `json:"questions"`
	Selects      []map[string]string `json:"selects,omitempty"`
	Answers      []string            `json:"answers"`
	Explanations []string            `json:"explanations,omitempty"`
}

// Empty reports whether the payload carries no questions.
func (q QuizPayload) Empty() bool {
	return len(q.Questions) == 0
}

// DecodeQuiz parses raw reply text into a QuizPayload. The upstream
// serializer is not contractually single- or double-encoded, so the text is
// unwrapped one level if it parses as a JSON string. Any parse failure
// degrades to an empty payload; no error is ever returned.
func DecodeQuiz(raw string) QuizPayload {
	data := []byte(raw)

	var wrapped string
	if err := json.Unmarshal(data, &wrapped); err == nil {
		data = []byte(wrapped)
	}

	var q QuizPayload
	if err := json.Unmarshal(data, &q); err != nil {
		return emptyQuiz()
	}
	if q.Questions == nil {
		q.Questions = []string{}
	}
	if q.Answers == nil {
		q.Answers = []string{}
	}
	return q
}

func emptyQuiz() QuizPayload {
	return QuizPayload{Questions: []string{}, Answers: []string{}}
}

// Score counts correct answers. answers maps question index to the chosen
// option key; indices not present count as unanswered, never as a failure.
func Score(q QuizPayload, answers map[int]string) int {
	correct := 0
	for i, want := range q.Answers {
		if got, ok := answers[i]; ok && got == want {
			correct++
		}
	}
	return correct
}
