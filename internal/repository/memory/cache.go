package memory

import (
	"context"
	"sync"

	"github.com/utafrali/storefront/internal/repository"
)

// LocalCache is an in-process repository.LocalCache.
type LocalCache struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewLocalCache creates an empty cache.
func NewLocalCache() *LocalCache {
	return &LocalCache{records: make(map[string][]byte)}
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.records[key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records[key] = append([]byte(nil), value...)
	return nil
}

func (c *LocalCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.records, key)
	return nil
}

// Len returns the number of stored records.
func (c *LocalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
