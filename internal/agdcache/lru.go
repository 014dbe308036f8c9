package agdcache

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/bluele/gcache"
)

// LRUConfig is the configuration structure for an [LRU] cache.
type LRUConfig struct {
	// Count is the maximum number of elements to keep in the cache.  It must be
	// positive.
	Count int
}

// LRU is an [Interface] implementation backed by a gcache LRU cache.  It is a
// stricter replacement for [FIFO] where the memory budget allows it.
type LRU[K, T any] struct {
	cache gcache.Cache
}

// NewLRU returns a new initialized LRU cache.  c must not be nil.
func NewLRU[K, T any](c *LRUConfig) (cache *LRU[K, T]) {
	return &LRU[K, T]{
		cache: gcache.New(c.Count).LRU().Build(),
	}
}

// type check
var _ Interface[any, any] = (*LRU[any, any])(nil)

// Set implements the [Interface] interface for *LRU.
func (c *LRU[K, T]) Set(key K, val T) {
	err := c.cache.Set(key, val)
	if err != nil {
		// Shouldn't happen, since there is no serialization function.
		panic(fmt.Errorf("agdcache: lru: setting item: %w", err))
	}
}

// Get implements the [Interface] interface for *LRU.
func (c *LRU[K, T]) Get(key K) (val T, ok bool) {
	v, err := c.cache.Get(key)
	if err != nil {
		if !errors.Is(err, gcache.KeyNotFoundError) {
			// Shouldn't happen, since there is no serialization function.
			panic(fmt.Errorf("agdcache: lru: getting item: %w", err))
		}

		return val, false
	}

	// T may be an interface or a pointer type, and memoized negative results
	// are stored as nil, so don't let the type assertion panic.
	if v == nil {
		return val, true
	}

	return v.(T), true
}

// type check
var _ Clearer = (*LRU[any, any])(nil)

// Clear implements the [Interface] interface for *LRU.
func (c *LRU[K, T]) Clear() {
	c.cache.Purge()
}

// Len implements the [Interface] interface for *LRU.
func (c *LRU[K, T]) Len() (n int) {
	// None of the items expire, so don't spend time on checking.
	const checkExpired = false

	return c.cache.Len(checkExpired)
}
