package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/repository"
)

const keyPrefix = "storefront:"

// LocalCache implements repository.LocalCache on Redis. Every write renews
// the record's TTL, so an idle shopper's state eventually expires.
type LocalCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocalCache creates a new Redis-backed local cache.
func NewLocalCache(client *redis.Client, ttl time.Duration) *LocalCache {
	return &LocalCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the record for key, or repository.ErrCacheMiss.
func (c *LocalCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key with the configured TTL.
func (c *LocalCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *LocalCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (c *LocalCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
