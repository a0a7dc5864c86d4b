package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/coach-slot-availability/internal/availability"
)

// ResultCache keeps encoded availability results under a key prefix.
type ResultCache struct {
	client *redis.Client
	prefix string
}

func NewResultCache(client *redis.Client, prefix string) *ResultCache {
	return &ResultCache{client: client, prefix: prefix}
}

func (c *ResultCache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *ResultCache) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	return data, true, nil
}

func (c *ResultCache) Store(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

var _ availability.Cache = (*ResultCache)(nil)
