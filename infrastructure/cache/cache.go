package cache

import (
	"sync"
	"time"
)

type EvictionPolicy int

const (
	// LRU evicts the least recently used items
	LRU EvictionPolicy = iota
	// FIFO evicts the oldest items
	FIFO
)

// Item represents a cache item with value and expiration time
type Item struct {
	Value      any
	Expiration int64
	Created    time.Time
	LastAccess time.Time
}

// IsExpired returns true if the item has expired
func (item Item) IsExpired(now time.Time) bool {
	if item.Expiration == 0 {
		return false
	}
	return now.UnixNano() > item.Expiration
}

// Cache is an in-memory TTL cache. The queue directory uses it to avoid a
// provider round trip per broadcast.
type Cache struct {
	items           map[string]Item
	mu              sync.RWMutex
	cleanupInterval time.Duration
	maxItems        int
	evictionPolicy  EvictionPolicy
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
	stats           Stats
}

type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
}

// Options configures the cache
type Options struct {
	CleanupInterval time.Duration
	MaxItems        int
	EvictionPolicy  EvictionPolicy
	// Clock overrides time.Now. Used by tests.
	Clock func() time.Time
}

// DefaultOptions returns the default cache options
func DefaultOptions() Options {
	return Options{
		CleanupInterval: time.Minute,
		MaxItems:        0,
		EvictionPolicy:  LRU,
	}
}

// NewCache creates a new cache with the given options
func NewCache(options Options) *Cache {
	now := options.Clock
	if now == nil {
		now = time.Now
	}

	cache := &Cache{
		items:           make(map[string]Item),
		cleanupInterval: options.CleanupInterval,
		maxItems:        options.MaxItems,
		evictionPolicy:  options.EvictionPolicy,
		stopCleanup:     make(chan struct{}),
		now:             now,
	}

	if cache.cleanupInterval > 0 {
		go cache.startCleanupTimer()
	}

	return cache
}

func (c *Cache) startCleanupTimer() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if item.IsExpired(now) {
			delete(c.items, key)
		}
	}
}

// evict removes one item according to the eviction policy. Caller holds mu.
func (c *Cache) evict() {
	var keyToEvict string
	var oldest time.Time

	for k, item := range c.items {
		ts := item.LastAccess
		if c.evictionPolicy == FIFO {
			ts = item.Created
		}
		if keyToEvict == "" || ts.Before(oldest) {
			keyToEvict = k
			oldest = ts
		}
	}

	if keyToEvict != "" {
		delete(c.items, keyToEvict)
		c.stats.Evictions++
	}
}

// Set adds an item to the cache with an expiration time. A zero expiration
// keeps the item until it is deleted.
func (c *Cache) Set(key string, value any, expiration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, exists := c.items[key]
	if c.maxItems > 0 && len(c.items) >= c.maxItems && !exists {
		c.evict()
	}

	now := c.now()
	var exp int64
	if expiration > 0 {
		exp = now.Add(expiration).UnixNano()
	}

	c.items[key] = Item{
		Value:      value,
		Expiration: exp,
		Created:    now,
		LastAccess: now,
	}
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.stats.Misses++
		return nil, false
	}

	now := c.now()
	if item.IsExpired(now) {
		delete(c.items, key)
		c.stats.Misses++
		return nil, false
	}

	item.LastAccess = now
	c.items[key] = item
	c.stats.Hits++

	return item.Value, true
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Flush removes all items from the cache
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]Item)
	c.stats = Stats{}
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
}

// Count returns the number of items in the cache
func (c *Cache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// GetStats returns the cache statistics
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.stats
}
