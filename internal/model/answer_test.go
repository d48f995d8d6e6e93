package model

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnswerRecordRejectsNegativeTime(t *testing.T) {
	_, err := NewAnswerRecord(uuid.New(), "blue", -1)
	assert.ErrorIs(t, err, ErrNegativeTimeSpent)

	rec, err := NewAnswerRecord(uuid.New(), "blue", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.TimeSpentSeconds)
}

func TestSubmissionPayloadUsesSnakeCaseKeys(t *testing.T) {
	rec, err := NewAnswerRecord(uuid.New(), "42", 17)
	require.NoError(t, err)

	payload := SubmissionPayload{
		SessionID:         uuid.New(),
		TimeLimitExceeded: true,
		Answers:           []AnswerRecord{rec},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	body := string(data)
	for _, key := range []string{"session_id", "time_limit_exceeded", "question_id", "user_answer", "time_spent_seconds"} {
		assert.Contains(t, body, `"`+key+`"`)
	}
	for _, key := range []string{"sessionId", "timeLimitExceeded", "questionId", "userAnswer", "timeSpentSeconds"} {
		assert.NotContains(t, body, key)
	}
}
