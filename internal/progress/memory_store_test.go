package progress

import (
	"context"
	"testing"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLoadMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Load(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()
	q1, q2 := uuid.New(), uuid.New()

	snap := model.SavedProgress{
		SessionID:    uuid.New(),
		StartedAt:    time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
		Answers:      map[uuid.UUID]string{q1: "A", q2: "C"},
		CurrentIndex: 2,
		SavedAt:      time.Date(2026, 4, 2, 9, 12, 0, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, userID, &snap))

	loaded, err := s.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, snap.SessionID, loaded.SessionID)
	assert.Equal(t, snap.StartedAt, loaded.StartedAt)
	assert.Equal(t, snap.Answers, loaded.Answers)
	assert.Equal(t, 2, loaded.CurrentIndex)
	assert.Equal(t, 2, loaded.AnsweredCount())
}

func TestMemoryStoreSaveReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	first := model.SavedProgress{SessionID: uuid.New(), CurrentIndex: 1}
	second := model.SavedProgress{SessionID: uuid.New(), CurrentIndex: 5}
	require.NoError(t, s.Save(ctx, userID, &first))
	require.NoError(t, s.Save(ctx, userID, &second))

	loaded, err := s.Load(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, second.SessionID, loaded.SessionID, "a user holds one snapshot at a time")
	assert.Equal(t, 5, loaded.CurrentIndex)
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, s.Save(ctx, userID, &model.SavedProgress{SessionID: uuid.New()}))
	require.NoError(t, s.Clear(ctx, userID))

	_, err := s.Load(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Clearing a user with no snapshot is a no-op.
	require.NoError(t, s.Clear(ctx, uuid.New()))
}

func TestMemoryStoreIsolatesUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	require.NoError(t, s.Save(ctx, alice, &model.SavedProgress{SessionID: uuid.New()}))

	_, err := s.Load(ctx, bob)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Clear(ctx, bob))
	_, err = s.Load(ctx, alice)
	assert.NoError(t, err, "clearing one user leaves another's snapshot")
}
