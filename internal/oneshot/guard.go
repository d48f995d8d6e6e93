// Package oneshot hands out single-acquisition guards: the first caller to
// claim a key wins, every later caller loses. Keeps independently racing
// timeout-submission triggers down to exactly one submission per session.
package oneshot

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Guard grants at most one acquisition per key.
type Guard interface {
	// Acquire returns true when the caller is the first to claim the key.
	Acquire(ctx context.Context, key string) (bool, error)
	// Release frees the key so a later attempt can claim it again. Used
	// when the winning path fails before finishing its work.
	Release(ctx context.Context, key string) error
}

// RedisGuard implements Guard with SETNX, so the claim holds across
// processes. The TTL bounds how long a crashed winner can block retries.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, key, "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	if err := g.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	return nil
}
