package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "test-key"}, zerolog.Nop())
}

func TestScoreDecodesResult(t *testing.T) {
	sessionID := uuid.New()

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/score", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload model.SubmissionPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, sessionID, payload.SessionID)
		assert.True(t, payload.TimeLimitExceeded)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"test_session_id": "` + sessionID.String() + `",
			"iq_score": 108,
			"accuracy_percentage": 75.0,
			"correct_answers": 9,
			"total_questions": 12,
			"percentile_rank": 71.5,
			"confidence_interval": {"lower": 101, "upper": 115, "confidence_level": 0.95}
		}`))
	})

	rec, err := model.NewAnswerRecord(uuid.New(), "16", 20)
	require.NoError(t, err)

	result, err := client.Score(context.Background(), model.SubmissionPayload{
		SessionID:         sessionID,
		TimeLimitExceeded: true,
		Answers:           []model.AnswerRecord{rec},
	})
	require.NoError(t, err)

	assert.Equal(t, sessionID, result.TestSessionID)
	assert.Equal(t, 108, result.IQScore)
	require.NotNil(t, result.PercentileRank)
	assert.InDelta(t, 71.5, *result.PercentileRank, 0.001)
	require.NotNil(t, result.ConfidenceInterval)
	assert.Equal(t, "108 (101-115)", result.ConfidenceInterval.CombinedLabel(result.IQScore))
}

func TestServerErrorsAreRetryable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine overloaded", http.StatusServiceUnavailable)
	})

	_, err := client.Score(context.Background(), model.SubmissionPayload{SessionID: uuid.New()})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, Retryable(err))
}

func TestTransportFailureIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client := New(Config{BaseURL: srv.URL}, zerolog.Nop())
	err := client.Abandon(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, Retryable(err))
}

func TestRejectionIsNotRetryable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown session", http.StatusUnprocessableEntity)
	})

	_, err := client.Score(context.Background(), model.SubmissionPayload{SessionID: uuid.New()})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.False(t, Retryable(err))
}

func TestMalformedBodyIsDecodeError(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"iq_score": "not a number"`))
	})

	_, err := client.Score(context.Background(), model.SubmissionPayload{SessionID: uuid.New()})
	require.Error(t, err)
	assert.False(t, Retryable(err))
	assert.Contains(t, err.Error(), "decode")
}

func TestNextQuestionDone(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions/next-question", r.URL.Path)
		_, _ = w.Write([]byte(`{"done": true}`))
	})

	q, done, err := client.NextQuestion(context.Background(), NextQuestionRequest{SessionID: uuid.New()})
	require.NoError(t, err)
	assert.True(t, done)
	assert.Nil(t, q)
}

func TestNextQuestionDecodesVariant(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"done": false,
			"question": {
				"question_id": "` + uuid.NewString() + `",
				"position": 4,
				"question_text": "Which figure completes the grid?",
				"question_type": "pattern",
				"difficulty": "hard",
				"content": {"sequence": ["a", "b"], "choices": ["c", "d"]}
			}
		}`))
	})

	q, done, err := client.NextQuestion(context.Background(), NextQuestionRequest{SessionID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, done)
	require.NotNil(t, q)
	assert.Equal(t, model.QuestionTypePattern, q.Type())
	assert.Equal(t, 4, q.Position)
}

func TestFetchFormReturnsQuestions(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/forms", r.URL.Path)
		_, _ = w.Write([]byte(`{"questions": [
			{"question_id": "` + uuid.NewString() + `", "position": 0, "question_text": "2 4 8 ?", "question_type": "pattern", "difficulty": "easy", "content": {"sequence": ["2","4","8"], "choices": ["12","16"]}},
			{"question_id": "` + uuid.NewString() + `", "position": 1, "question_text": "vast : tiny", "question_type": "verbal", "difficulty": "medium", "content": {"choices": ["analogous","opposite"]}}
		]}`))
	})

	questions, err := client.FetchForm(context.Background(), FormRequest{SessionID: uuid.New(), UserID: uuid.New()})
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, model.QuestionTypeVerbal, questions[1].Type())
}
