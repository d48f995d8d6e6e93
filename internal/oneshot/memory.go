package oneshot

import (
	"context"
	"sync"
)

// MemoryGuard is an in-process Guard used by tests.
type MemoryGuard struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claimed: map[string]bool{}}
}

func (g *MemoryGuard) Acquire(_ context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.claimed[key] {
		return false, nil
	}
	g.claimed[key] = true
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claimed, key)
	return nil
}
