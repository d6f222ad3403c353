package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 500 * time.Millisecond

// redisKVClient is the subset of the redis client the store needs.
type redisKVClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore persists blobs as plain redis strings under a prefix.
type RedisStore struct {
	client redisKVClient
	prefix string
}

// NewRedisStore wraps a redis client; keys are stored as prefix+key
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return newRedisStore(client, prefix)
}

func newRedisStore(client redisKVClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cvscreener:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: redis get %s: %w", ErrPersistence, key, err)
	}
	return data, true, nil
}

func (s *RedisStore) Write(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %w", ErrPersistence, key, err)
	}
	return nil
}
