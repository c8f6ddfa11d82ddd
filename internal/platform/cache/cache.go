// Package cache provides a Dragonfly/Redis client wrapper used to cache
// external API responses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rapidrevise:"

// Cache wraps a Redis/Dragonfly client.
type Cache struct {
	Client *redis.Client
}

// ParseURL validates a Redis connection URL.
func ParseURL(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("cache URL is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid cache URL: %w", err)
	}
	return opts, nil
}

// New creates a new cache client.
func New(ctx context.Context, url string) (*Cache, error) {
	opts, err := ParseURL(url)
	if err != nil {
		return nil, err
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging cache: %w", err)
	}

	return &Cache{Client: client}, nil
}

// GetBytes returns the value stored under key. Misses and cache errors both
// report false; errors are logged.
func (c *Cache) GetBytes(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.Client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// SetBytes stores data under key for ttl. A zero ttl keeps the value until
// evicted. Errors are logged only.
func (c *Cache) SetBytes(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.Client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		slog.Warn("cache set failed", "key", key, "error", err)
	}
}

// Close shuts down the cache client.
func (c *Cache) Close() error {
	return c.Client.Close()
}

// HealthCheck verifies the cache connection is alive.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}
