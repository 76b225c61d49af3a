package storage

import (
	"context"
	"time"
)

// FetchFn produces a fresh value for a cache miss
type FetchFn[T any] func(context.Context) (T, error)

// Cache is a TTL-bounded key-value store for fetched market data
type Cache[T any] interface {
	// Get returns the value for the key, if present and not expired
	Get(key string) (T, bool)

	// Put stores the value under the key for the given TTL
	Put(key string, value T, ttl time.Duration)

	// Invalidate drops the key, if present
	Invalidate(key string)

	// GetOrFetch returns the cached value for the key, or fetches and stores it.
	// Concurrent misses on the same key share a single in-flight fetch
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFn[T]) (T, error)
}
