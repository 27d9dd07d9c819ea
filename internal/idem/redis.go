package idem

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps idempotency keys in redis with a TTL, so expiry needs no
// sweeping at all.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry

	raw, err := s.rdb.Get(ctx, "idem:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}

	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return e, err
	}
	return e, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	// NX keeps the first writer's entry; a concurrent retry reads it back.
	return s.rdb.SetNX(ctx, "idem:"+key, raw, s.ttl).Err()
}
