// Package idempotency remembers which client queue ids the server has
// already accepted, so redelivered mutations are applied once.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "vaxsync:idem:"

type Store interface {
	// Claim records key and reports whether this call was the first to do so.
	Claim(ctx context.Context, scope, key string) (bool, error)
	// Release forgets key so a failed first attempt can be retried.
	Release(ctx context.Context, scope, key string) error
}

// RedisStore keeps claims as SETNX keys with a TTL.
type RedisStore struct {
	c   *redis.Client
	ttl time.Duration
}

func NewRedisStore(c *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{c: c, ttl: ttl}
}

// NewRedisClient builds a client for addr and db.
func NewRedisClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, DB: db})
}

func redisKey(scope, key string) string {
	return keyPrefix + scope + ":" + key
}

func (s *RedisStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	ok, err := s.c.SetNX(ctx, redisKey(scope, key), time.Now().UTC().Format(time.RFC3339Nano), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim %s/%s: %w", scope, key, err)
	}
	return ok, nil
}

func (s *RedisStore) Release(ctx context.Context, scope, key string) error {
	if err := s.c.Del(ctx, redisKey(scope, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release %s/%s: %w", scope, key, err)
	}
	return nil
}

// Ping checks the redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.c.Ping(ctx).Err()
}
