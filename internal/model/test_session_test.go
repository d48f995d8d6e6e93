package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionCompletionInvariant(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		session TestSession
		wantErr bool
	}{
		{"in progress without timestamp", TestSession{Status: SessionStatusInProgress}, false},
		{"completed with timestamp", TestSession{Status: SessionStatusCompleted, CompletedAt: &now}, false},
		{"abandoned without timestamp", TestSession{Status: SessionStatusAbandoned}, false},
		{"completed missing timestamp", TestSession{Status: SessionStatusCompleted}, true},
		{"in progress with timestamp", TestSession{Status: SessionStatusInProgress, CompletedAt: &now}, true},
		{"abandoned with timestamp", TestSession{Status: SessionStatusAbandoned, CompletedAt: &now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.session.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSessionStateInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	assert.False(t, SessionStatusInProgress.IsTerminal())
	assert.True(t, SessionStatusCompleted.IsTerminal())
	assert.True(t, SessionStatusAbandoned.IsTerminal())
}
