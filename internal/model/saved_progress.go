package model

import (
	"time"

	"github.com/google/uuid"
)

// SavedProgress is a resumable snapshot of a session in flight. Written when
// a participant leaves a fixed-form test mid-session, read once at session
// entry, cleared when the user starts over or the session ends.
type SavedProgress struct {
	SessionID    uuid.UUID            `json:"session_id"`
	StartedAt    time.Time            `json:"started_at"`
	Answers      map[uuid.UUID]string `json:"answers"`
	CurrentIndex int                  `json:"current_index"`
	SavedAt      time.Time            `json:"saved_at"`
}

// AnsweredCount counts the non-empty answers in the snapshot.
func (p *SavedProgress) AnsweredCount() int {
	n := 0
	for _, a := range p.Answers {
		if a != "" {
			n++
		}
	}
	return n
}

// SaveProgressRequest is the payload for persisting mid-session progress.
type SaveProgressRequest struct {
	Answers      map[string]string `json:"answers" binding:"required"`
	CurrentIndex int               `json:"current_index" binding:"min=0"`
}
