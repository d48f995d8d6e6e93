package oneshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGuardSingleAcquisition(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	first, err := g.Acquire(ctx, "session:a")
	require.NoError(t, err)
	assert.True(t, first)

	second, err := g.Acquire(ctx, "session:a")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := g.Acquire(ctx, "session:b")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryGuardReleaseReopensKey(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, err := g.Acquire(ctx, "session:a")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, g.Release(ctx, "session:a"))

	again, err := g.Acquire(ctx, "session:a")
	require.NoError(t, err)
	assert.True(t, again)
}
