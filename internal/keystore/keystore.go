// Package keystore is a keyed byte store with per-key expiry. It backs
// short-lived records such as invitation tokens.
package keystore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned for keys that are missing or expired
var ErrNotFound = errors.New("key not found")

// Store is safe for concurrent use. A ttl of zero or less means the key
// never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Expire resets the remaining lifetime of an existing key
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Take returns the value and removes the key in one step, so at most
	// one caller ever sees it.
	Take(ctx context.Context, key string) ([]byte, error)
	Close() error
}

// NewFromEnv returns a Redis store when REDIS_URL is set and an in-memory
// store otherwise.
func NewFromEnv(ctx context.Context, prefix string) (Store, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStore(client, prefix), nil
}
