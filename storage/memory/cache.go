package memory

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sig-0/p2prates/storage"
)

var _ storage.Cache[int] = (*Cache[int])(nil)

type Option[T any] func(c *Cache[T])

// WithCloner specifies how values are copied on the way in and out of the cache,
// so callers never alias cached data. Defaults to a plain value copy
func WithCloner[T any](fn func(T) T) Option[T] {
	return func(c *Cache[T]) {
		c.clone = fn
	}
}

// Cache is an in-memory TTL cache that coalesces concurrent misses
// for the same key into a single fetch.
// Expired entries are evicted when read, and swept by the cleanup janitor
type Cache[T any] struct {
	items *gocache.Cache
	clone func(T) T

	group singleflight.Group
	mux   sync.Mutex
}

// NewCache creates a new in-memory cache, sweeping expired
// entries at the given interval
func NewCache[T any](cleanupInterval time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		items: gocache.New(gocache.NoExpiration, cleanupInterval),
		clone: func(v T) T {
			return v
		},
	}

	// Apply the options
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Cache[T]) Get(key string) (T, bool) {
	var zero T

	raw, ok := c.items.Get(key)
	if !ok {
		c.evict(key)

		return zero, false
	}

	v, ok := raw.(T)
	if !ok {
		return zero, false
	}

	return c.clone(v), true
}

// Put stores the value for the given TTL. A non-positive TTL disables caching
func (c *Cache[T]) Put(key string, value T, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mux.Lock()
	defer c.mux.Unlock()

	c.items.Set(key, c.clone(value), ttl)
}

// evict drops the entry for the key if it has expired.
// It holds the same lock as Put, so a concurrent store is never dropped
func (c *Cache[T]) evict(key string) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if _, ok := c.items.Get(key); !ok {
		c.items.Delete(key)
	}
}

func (c *Cache[T]) Invalidate(key string) {
	c.items.Delete(key)
}

// GetOrFetch returns the cached value, or runs fetch on a miss and caches the result.
// The first caller runs the fetch, detached from its own cancellation so that
// concurrent waiters are not failed by it; every caller still returns as soon as
// its own context is done. Failed fetches are not cached
func (c *Cache[T]) GetOrFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fetch storage.FetchFn[T],
) (T, error) {
	var zero T

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	resCh := c.group.DoChan(key, func() (any, error) {
		// A fetch for this key may have completed since the miss
		if v, ok := c.Get(key); ok {
			return v, nil
		}

		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.Put(key, v, ttl)

		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			return zero, res.Err
		}

		v, _ := res.Val.(T)

		return c.clone(v), nil
	}
}
