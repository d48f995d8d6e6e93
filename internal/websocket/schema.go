package websocket

import (
	"github.com/gioe/aiq-sub010/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer       Action = "answer"
	ActionNavigate     Action = "navigate"
	ActionNextQuestion Action = "next_question"
	ActionSave         Action = "save"
	ActionSubmit       Action = "submit"
	ActionAbandon      Action = "abandon"
	ActionPing         Action = "ping"
)

// RequestEnvelope carries every client message. Only the fields relevant to
// the action are read.
type RequestEnvelope struct {
	Action Action `json:"action"`

	// ActionAnswer
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`

	// ActionNavigate
	Index int `json:"index,omitempty"`

	// ActionSubmit
	TimeSpent map[string]int `json:"time_spent,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState     Event = "state"
	EventQuestion  Event = "question"
	EventTick      Event = "tick"
	EventWarning   Event = "warning"
	EventExpired   Event = "expired"
	EventLocked    Event = "locked"
	EventSaved     Event = "saved"
	EventSubmitted Event = "submitted"
	EventAbandoned Event = "abandoned"
	EventError     Event = "error"
	EventPong      Event = "pong"
)

// StateResponse paints the full client view after connect.
type StateResponse struct {
	Event            Event             `json:"event"`
	SessionID        string            `json:"session_id"`
	Mode             string            `json:"mode"`
	Questions        []model.Question  `json:"questions"`
	Answers          map[string]string `json:"answers"`
	CurrentIndex     int               `json:"current_index"`
	AnsweredCount    int               `json:"answered_count"`
	RemainingSeconds float64           `json:"remaining_seconds"`
}

// QuestionResponse delivers the next adaptive item. Done signals that the
// engine has converged and the client should submit.
type QuestionResponse struct {
	Event    Event           `json:"event"`
	Question *model.Question `json:"question,omitempty"`
	Done     bool            `json:"done"`
}

// TickResponse is the once-per-second countdown heartbeat.
type TickResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// WarningResponse fires once when the countdown crosses the warning band.
type WarningResponse struct {
	Event            Event   `json:"event"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

// ExpiredResponse fires once when the session clock reaches zero.
type ExpiredResponse struct {
	Event Event `json:"event"`
}

// LockedResponse tells the client its answers are frozen.
type LockedResponse struct {
	Event Event `json:"event"`
}

// SavedResponse acknowledges an explicit save.
type SavedResponse struct {
	Event   Event  `json:"event"`
	SavedAt string `json:"saved_at"`
}

// SubmittedResponse carries the scored result after either submission path.
type SubmittedResponse struct {
	Event             Event                      `json:"event"`
	TimeLimitExceeded bool                       `json:"time_limit_exceeded"`
	Result            *model.SubmittedTestResult `json:"result"`
}

// AbandonedResponse confirms the session was discarded.
type AbandonedResponse struct {
	Event Event `json:"event"`
}

// ErrorResponse reports a rejected action.
type ErrorResponse struct {
	Event   Event  `json:"event"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongResponse answers a ping.
type PongResponse struct {
	Event Event `json:"event"`
}
