package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victoralfred/qrisk/internal/cache"
)

// ResultCache implements cache.ResultCache on Redis string keys with TTL.
type ResultCache struct {
	client               *redis.Client
	compressionThreshold int
}

// NewResultCache creates a Redis-backed result cache. Payloads larger than
// compressionThreshold bytes are gzip-compressed; zero disables compression.
func NewResultCache(client *redis.Client, compressionThreshold int) *ResultCache {
	return &ResultCache{
		client:               client,
		compressionThreshold: compressionThreshold,
	}
}

// Get retrieves a cached result
func (c *ResultCache) Get(ctx context.Context, key string) (*cache.Entry, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, fmt.Errorf("result cache get failed: %w", err)
	}
	return cache.Decode(data)
}

// Set stores a result with the given TTL
func (c *ResultCache) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	data, err := cache.Encode(entry, c.compressionThreshold)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("result cache set failed: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
