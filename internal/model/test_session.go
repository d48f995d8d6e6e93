package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test session states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusAbandoned  SessionStatus = "abandoned"
)

// IsTerminal reports whether the status permits no further transitions.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// TestMode selects how questions are delivered.
type TestMode string

const (
	// TestModeFixed delivers a complete question set up front with
	// random-access navigation.
	TestModeFixed TestMode = "fixed"
	// TestModeAdaptive delivers questions one at a time, each chosen by the
	// scoring engine from the previous answers.
	TestModeAdaptive TestMode = "adaptive"
)

// IsValid reports whether the mode is one of the known delivery modes.
func (m TestMode) IsValid() bool {
	return m == TestModeFixed || m == TestModeAdaptive
}

// ErrSessionStateInvalid marks a session whose completion timestamp
// contradicts its status.
var ErrSessionStateInvalid = errors.New("session completion timestamp does not match status")

// TestSession represents a single test attempt.
type TestSession struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	Mode              TestMode      `json:"mode"`
	Status            SessionStatus `json:"status"`
	StartedAt         time.Time     `json:"started_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	TimeLimitExceeded bool          `json:"time_limit_exceeded"`
	QuestionCount     int           `json:"question_count"`
	AdaptiveComplete  bool          `json:"adaptive_complete"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// Validate enforces the completion invariant: completed_at is set if and
// only if the session is completed.
func (s *TestSession) Validate() error {
	if (s.Status == SessionStatusCompleted) != (s.CompletedAt != nil) {
		return ErrSessionStateInvalid
	}
	return nil
}

// StartTestRequest is the payload for starting a new session.
type StartTestRequest struct {
	Mode string `json:"mode" binding:"required,oneof=fixed adaptive"`
}

// AbandonAndStartRequest is the payload for abandoning a conflicting
// session and starting fresh in one step.
type AbandonAndStartRequest struct {
	Mode string `json:"mode" binding:"required,oneof=fixed adaptive"`
}
