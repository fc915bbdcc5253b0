package eventbus

import (
	"context"
	"sync"
)

const DefaultCacheSize = 1000

// Cache keeps recently published events keyed by Event.CacheKey.
type Cache interface {
	Put(ctx context.Context, evt Event) error
	// Recent returns up to n events, oldest first. n <= 0 returns everything held.
	Recent(ctx context.Context, n int) ([]Event, error)
	Get(ctx context.Context, key string) (Event, bool, error)
	Clear(ctx context.Context) error
}

type MemoryCache struct {
	mu     sync.RWMutex
	size   int
	events []Event
	index  map[string]Event
}

func NewMemoryCache(size int) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &MemoryCache{
		size:   size,
		events: make([]Event, 0, size),
		index:  make(map[string]Event, size),
	}
}

func (c *MemoryCache) Put(_ context.Context, evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == c.size {
		oldest := c.events[0]
		if current, ok := c.index[oldest.CacheKey()]; ok && current.Timestamp.Equal(oldest.Timestamp) {
			delete(c.index, oldest.CacheKey())
		}
		copy(c.events, c.events[1:])
		c.events = c.events[:len(c.events)-1]
	}
	c.events = append(c.events, evt)
	c.index[evt.CacheKey()] = evt
	return nil
}

func (c *MemoryCache) Recent(_ context.Context, n int) ([]Event, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	start := 0
	if n > 0 && n < len(c.events) {
		start = len(c.events) - n
	}
	out := make([]Event, len(c.events)-start)
	copy(out, c.events[start:])
	return out, nil
}

func (c *MemoryCache) Get(_ context.Context, key string) (Event, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	evt, ok := c.index[key]
	return evt, ok, nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.index = make(map[string]Event, c.size)
	return nil
}
