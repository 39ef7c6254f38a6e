package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is a process-local ResultCache used when Redis is disabled.
// Entries are stored serialised so callers never share memory with the cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get retrieves an entry
func (c *MemoryCache) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || !c.now().Before(item.expiresAt) {
		return nil, ErrCacheMiss
	}
	return Decode(item.data)
}

// Set stores an entry; the last writer for a key wins.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(entry, 0)
	if err != nil {
		return err
	}

	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryItem{data: data, expiresAt: now.Add(ttl)}
	c.evictExpired(now)
	return nil
}

// evictExpired drops stale items; callers hold the write lock.
func (c *MemoryCache) evictExpired(now time.Time) {
	for k, item := range c.items {
		if !now.Before(item.expiresAt) {
			delete(c.items, k)
		}
	}
}

// Len returns the number of stored items, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
