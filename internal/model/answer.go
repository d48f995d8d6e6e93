package model

import (
	"errors"

	"github.com/google/uuid"
)

// ErrNegativeTimeSpent marks an answer record built with a negative
// time-spent value.
var ErrNegativeTimeSpent = errors.New("time spent cannot be negative")

// AnswerRecord is one answered question in a submission payload.
type AnswerRecord struct {
	QuestionID       uuid.UUID `json:"question_id"`
	UserAnswer       string    `json:"user_answer"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}

// NewAnswerRecord builds an AnswerRecord, rejecting negative time-spent
// values at construction.
func NewAnswerRecord(questionID uuid.UUID, answer string, timeSpentSeconds int) (AnswerRecord, error) {
	if timeSpentSeconds < 0 {
		return AnswerRecord{}, ErrNegativeTimeSpent
	}
	return AnswerRecord{
		QuestionID:       questionID,
		UserAnswer:       answer,
		TimeSpentSeconds: timeSpentSeconds,
	}, nil
}

// SubmissionPayload is the request body sent to the scoring engine.
type SubmissionPayload struct {
	SessionID         uuid.UUID      `json:"session_id"`
	TimeLimitExceeded bool           `json:"time_limit_exceeded"`
	Answers           []AnswerRecord `json:"answers"`
}

// SubmitTestRequest is the payload for a manual submission.
type SubmitTestRequest struct {
	Answers []SubmitAnswer `json:"answers" binding:"required,dive"`
}

// SubmitAnswer is one user answer inside a submit request.
type SubmitAnswer struct {
	QuestionID       uuid.UUID `json:"question_id" binding:"required"`
	UserAnswer       string    `json:"user_answer"`
	TimeSpentSeconds int       `json:"time_spent_seconds" binding:"min=0"`
}
