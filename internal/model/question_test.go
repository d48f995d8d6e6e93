package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQuestionValidation(t *testing.T) {
	id := uuid.New()

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := NewQuestion(id, 0, "   ", DifficultyEasy, VerbalContent{Choices: []string{"a"}}, "")
		assert.ErrorIs(t, err, ErrEmptyQuestionText)
	})

	t.Run("rejects nil content", func(t *testing.T) {
		_, err := NewQuestion(id, 0, "Which word completes the analogy?", DifficultyEasy, nil, "")
		assert.ErrorIs(t, err, ErrMissingContent)
	})

	t.Run("rejects unknown difficulty", func(t *testing.T) {
		_, err := NewQuestion(id, 0, "2 + 2 = ?", "extreme", MathContent{}, "")
		assert.ErrorIs(t, err, ErrInvalidDifficulty)
	})

	t.Run("valid question reports its domain", func(t *testing.T) {
		content := MemoryContent{Stimulus: "red circle, blue square", ExposureSeconds: 10, Choices: []string{"2", "3"}}
		q, err := NewQuestion(id, 3, "How many shapes were shown?", DifficultyHard, content, "")
		require.NoError(t, err)
		assert.Equal(t, QuestionTypeMemory, q.Type())
	})
}

func TestQuestionJSONRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		content Content
	}{
		{"pattern", PatternContent{Sequence: []string{"2", "4", "8"}, Choices: []string{"12", "16"}}},
		{"logic", LogicContent{Premises: []string{"All A are B", "x is A"}, Choices: []string{"yes", "no"}}},
		{"spatial", SpatialContent{FigureRef: "fig-7", Choices: []string{"a", "b", "c"}}},
		{"math", MathContent{}},
		{"verbal", VerbalContent{Choices: []string{"vast", "tiny"}}},
		{"memory", MemoryContent{Stimulus: "7 3 9 1", ExposureSeconds: 15, Choices: []string{"7391", "7193"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuestion(uuid.New(), 1, "prompt", DifficultyMedium, tt.content, "worked example")
			require.NoError(t, err)

			data, err := json.Marshal(q)
			require.NoError(t, err)
			assert.Contains(t, string(data), `"question_type":"`+tt.name+`"`)

			var decoded Question
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.Equal(t, q.ID, decoded.ID)
			assert.Equal(t, q.Text, decoded.Text)
			assert.Equal(t, tt.content, decoded.Content)
		})
	}
}

func TestQuestionUnknownTypeFailsDecode(t *testing.T) {
	payload := `{"question_id":"` + uuid.NewString() + `","question_text":"?","question_type":"riddle","difficulty":"easy","content":{}}`

	var q Question
	err := json.Unmarshal([]byte(payload), &q)
	assert.ErrorIs(t, err, ErrUnknownQuestionType)
}
