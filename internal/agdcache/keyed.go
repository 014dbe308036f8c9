package agdcache

import (
	"fmt"
	"sync"

	"github.com/viktordanov/golang-lru/simplelru"
)

// KeyedConfig is the configuration structure for a [*Keyed] cache.
type KeyedConfig struct {
	// Count is the maximum number of elements to keep in the cache.  It must be
	// positive.
	Count int
}

// Keyed is a thread-safe LRU [Interface] implementation that, unlike the memo
// caches, supports removal of single keys.  The rule-list stores use it to
// drop the lists that have been removed from the disk.
type Keyed[K comparable, T any] struct {
	// mu protects cache.  Reads also need a write lock, since they change the
	// recency of the key.
	mu    *sync.Mutex
	cache *simplelru.LRU[K, T]
}

// NewKeyed returns a new initialized *Keyed cache.  c must not be nil.
func NewKeyed[K comparable, T any](c *KeyedConfig) (cache *Keyed[K, T], err error) {
	lru, err := simplelru.NewLRU[K, T](c.Count, nil)
	if err != nil {
		return nil, fmt.Errorf("agdcache: creating keyed lru: %w", err)
	}

	return &Keyed[K, T]{
		mu:    &sync.Mutex{},
		cache: lru,
	}, nil
}

// type check
var _ Interface[string, any] = (*Keyed[string, any])(nil)

// Set implements the [Interface] interface for *Keyed.
func (c *Keyed[K, T]) Set(key K, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.cache.Add(key, val)
}

// Get implements the [Interface] interface for *Keyed.
func (c *Keyed[K, T]) Get(key K) (val T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Get(key)
}

// Remove removes the value for key from the cache, if there is one.
func (c *Keyed[K, T]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.cache.Remove(key)
}

// type check
var _ Clearer = (*Keyed[string, any])(nil)

// Clear implements the [Interface] interface for *Keyed.
func (c *Keyed[K, T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Purge()
}

// Len implements the [Interface] interface for *Keyed.
func (c *Keyed[K, T]) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.cache.Len()
}
