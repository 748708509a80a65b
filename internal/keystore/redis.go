package keystore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps keys in Redis under a common prefix
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps an existing client; the store owns it from then on
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	var (
		ok  bool
		err error
	)
	if ttl <= 0 {
		ok, err = s.client.Persist(ctx, s.key(key)).Result()
		if err == nil && !ok {
			// PERSIST also reports false for keys that exist without a TTL
			n, existsErr := s.client.Exists(ctx, s.key(key)).Result()
			ok, err = n > 0, existsErr
		}
	} else {
		ok, err = s.client.Expire(ctx, s.key(key), ttl).Result()
	}
	if err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel %s: %w", key, err)
	}
	return val, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
