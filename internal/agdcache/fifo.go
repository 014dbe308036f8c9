package agdcache

import (
	"sync"
)

// Default values for [FIFOConfig].
const (
	DefaultFIFOMaxBuckets = 5
	DefaultFIFOBucketSize = 50
)

// FIFOConfig is the configuration structure for a [FIFO] cache.
type FIFOConfig struct {
	// MaxBuckets is the maximum number of buckets kept by the cache.  It must
	// be positive.
	MaxBuckets int

	// BucketSize is the nominal number of entries in a single bucket.  It must
	// be positive.
	BucketSize int
}

// FIFO is an [Interface] implementation that keeps its entries in an ordered
// sequence of buckets and evicts the oldest bucket wholesale once there are
// too many of them.  It is not a strict LRU: reads do not change the order of
// entries, and eviction happens at bucket granularity.
//
// The zero value of T is a valid value and is returned with ok set to true,
// so that negative results can be memoized as well.
type FIFO[K comparable, T any] struct {
	// mu protects buckets.
	mu *sync.Mutex

	// buckets are ordered from the oldest to the newest one.
	buckets []map[K]T

	maxBuckets int
	bucketSize int
}

// NewFIFO returns a new properly initialized *FIFO.  c must not be nil and
// must be valid.
func NewFIFO[K comparable, T any](c *FIFOConfig) (cache *FIFO[K, T]) {
	return &FIFO[K, T]{
		mu:         &sync.Mutex{},
		buckets:    []map[K]T{},
		maxBuckets: c.MaxBuckets,
		bucketSize: c.BucketSize,
	}
}

// type check
var _ Interface[any, any] = (*FIFO[any, any])(nil)

// Set implements the [Interface] interface for *FIFO.
func (c *FIFO[K, T]) Set(key K, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.add(key, val)
}

// add adds val into the newest bucket, starting a new one if the current newest
// bucket has already grown beyond the nominal size.  c.mu must be locked.
func (c *FIFO[K, T]) add(key K, val T) {
	if len(c.buckets) > c.maxBuckets {
		c.buckets = c.buckets[1:]
	}

	n := len(c.buckets)
	if n == 0 || len(c.buckets[n-1]) > c.bucketSize {
		c.buckets = append(c.buckets, make(map[K]T, c.bucketSize+1))
		n++
	}

	c.buckets[n-1][key] = val
}

// Get implements the [Interface] interface for *FIFO.  Buckets are scanned
// from the newest to the oldest one.
func (c *FIFO[K, T]) Get(key K) (val T, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.buckets) - 1; i >= 0; i-- {
		val, ok = c.buckets[i][key]
		if ok {
			return val, true
		}
	}

	return val, false
}

// type check
var _ Clearer = (*FIFO[any, any])(nil)

// Clear implements the [Interface] interface for *FIFO.
func (c *FIFO[K, T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buckets = []map[K]T{}
}

// Len implements the [Interface] interface for *FIFO.  n may include outdated
// duplicates of keys stored in older buckets.
func (c *FIFO[K, T]) Len() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, b := range c.buckets {
		n += len(b)
	}

	return n
}

// BucketsLen returns the number of buckets currently kept by the cache.
func (c *FIFO[K, T]) BucketsLen() (n int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.buckets)
}
