// Package progress persists resumable mid-session snapshots keyed by user.
package progress

import (
	"context"
	"errors"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a user has no saved progress.
var ErrNotFound = errors.New("saved progress not found")

// Store reads and writes SavedProgress snapshots. A user has at most one
// snapshot at a time; saving replaces it.
type Store interface {
	Load(ctx context.Context, userID uuid.UUID) (*model.SavedProgress, error)
	Save(ctx context.Context, userID uuid.UUID, progress *model.SavedProgress) error
	Clear(ctx context.Context, userID uuid.UUID) error
}
