// internal/room/redis.go
//
// Redis-backed implementation of the Store interface. Room records live
// under `room:<id>:state` keys with the retention TTL refreshed on every
// save, so idle rooms fall out of the store on their own.

package room

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisStore adapts a go-redis client to the Store interface.
type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-connected Redis client.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	// TTL 0 here; retention is applied by the follow-up Expire.
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, key, ttl).Err()
}
