package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier implements Tier on a Redis server. This is the fast volatile
// tier; TTLs are enforced natively by Redis.
type RedisTier struct {
	client *redis.Client
}

// NewRedisTier connects to the Redis server at the given URL
// (e.g. "redis://localhost:6379/0") and verifies the connection.
func NewRedisTier(url string) (*RedisTier, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis cache connected", "addr", opts.Addr, "db", opts.DB)

	return &RedisTier{client: client}, nil
}

// Get retrieves a value from Redis. A missing key is not an error.
func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, true, nil
}

// Set stores a value in Redis with the given TTL.
func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes a key, reporting whether it existed.
func (t *RedisTier) Delete(ctx context.Context, key string) (bool, error) {
	n, err := t.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del %q: %w", key, err)
	}
	return n > 0, nil
}

// Flush clears the whole Redis database.
func (t *RedisTier) Flush(ctx context.Context) error {
	if err := t.client.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("redis flushdb: %w", err)
	}
	return nil
}

// Ping probes the Redis connection.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (t *RedisTier) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}
