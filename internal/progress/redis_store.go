package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gioe/aiq-sub010/internal/config"
	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/gioe/aiq-sub010/internal/timer"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// snapshotTTL keeps stale snapshots from lingering forever. It sits well
// above the session ceiling: an expired session must still be loadable so
// its answers can ride the timeout-submission path.
const snapshotTTL = timer.SessionDuration + 24*time.Hour

// RedisStore keeps snapshots in Redis under the user progress key.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Load(ctx context.Context, userID uuid.UUID) (*model.SavedProgress, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.UserProgressKey(userID.String())).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	var p model.SavedProgress
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}

func (s *RedisStore) Save(ctx context.Context, userID uuid.UUID, progress *model.SavedProgress) error {
	raw, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.UserProgressKey(userID.String()), raw, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.rdb.Del(ctx, config.CacheKey.UserProgressKey(userID.String())).Err(); err != nil {
		return fmt.Errorf("clear progress: %w", err)
	}
	return nil
}
