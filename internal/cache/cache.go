// Package cache provides small TTL key/value stores used for process-wide
// dedupe windows (for example the recently-confirmed orders map). The
// in-memory backend serves single-instance deployments; the Redis backend
// lets the window span processes that share a Redis instance.
package cache

import (
	"context"
	"time"
)

// Cache is a TTL key/value store.
type Cache interface {
	// Get returns the value stored under key or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Exists reports whether key is present and not expired.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// CacheError is a constant error type for cache failures.
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)
