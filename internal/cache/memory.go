package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/xianyu-agent/internal/clock"
)

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e *cacheEntry) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// MemoryCache is an in-memory Cache with a periodic sweep of expired keys.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	clk     clock.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryCache creates a memory cache swept every interval. A nil clock
// uses wall time; interval <= 0 disables the background sweep.
func NewMemoryCache(clk clock.Clock, interval time.Duration) *MemoryCache {
	if clk == nil {
		clk = clock.New()
	}
	c := &MemoryCache{
		entries: make(map[string]*cacheEntry),
		clk:     clk,
		stop:    make(chan struct{}),
	}
	if interval > 0 {
		go c.cleanup(interval)
	}
	return c
}

// Get retrieves a copy of the value stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || e.expired(c.clk.Now()) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, value, ttl)
	return nil
}

// SetNX stores value only when key is absent or expired.
func (c *MemoryCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok && !e.expired(c.clk.Now()) {
		return false, nil
	}
	c.put(key, value, ttl)
	return true, nil
}

func (c *MemoryCache) put(key string, value []byte, ttl time.Duration) {
	v := make([]byte, len(value))
	copy(v, value)
	c.entries[key] = &cacheEntry{value: v, expiresAt: c.clk.Now().Add(ttl)}
}

// Exists reports whether key is present and not expired.
func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	return ok && !e.expired(c.clk.Now()), nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background sweep. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	t := c.clk.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C():
			c.RemoveExpired()
		case <-c.stop:
			return
		}
	}
}

// RemoveExpired drops every expired entry.
func (c *MemoryCache) RemoveExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clk.Now()
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
		}
	}
}
