package cache

import (
	"context"
	"sync"
	"time"
)

// InMemoryCache provides a simple in-memory cache implementation
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type cacheItem struct {
	value     interface{}
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache that sweeps expired
// entries every cleanupInterval until Close is called
func NewInMemoryCache(cleanupInterval time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go cache.cleanupExpired(cleanupInterval)
	}

	return cache
}

// Get retrieves a value from cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists {
		return nil, false
	}

	if c.now().After(item.expiresAt) {
		return nil, false
	}

	return item.value, true
}

// Set stores a value in cache with TTL in seconds
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, ttl int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheItem{
		value:     value,
		expiresAt: c.now().Add(time.Duration(ttl) * time.Second),
	}

	return nil
}

// Delete removes a value from cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// Clear removes all values from cache
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

// Len returns the number of stored entries, expired or not
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine
func (c *InMemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupExpired periodically removes expired items
func (c *InMemoryCache) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *InMemoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}
