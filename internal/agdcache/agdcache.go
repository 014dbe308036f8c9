// Package agdcache contains the caches used to memoize the results of the
// filtering engines and to keep the compiled content-blocker rule lists, as
// well as the manager that allows purging them by identifier.
package agdcache

// Interface is the cache interface.  None of the caches expire their entries;
// they are only evicted by size or purged explicitly.
type Interface[K, T any] interface {
	// Set sets key and val as cache pair.
	Set(key K, val T)

	// Get gets val from the cache using key.  ok is true for memoized zero
	// values as well.
	Get(key K) (val T, ok bool)

	// Clearer completely clears cache.
	Clearer

	// Len returns the number of items in the cache.
	Len() (n int)
}

// Clearer is a partial cache interface used by [Manager].
type Clearer interface {
	// Clear completely clears cache.
	Clear()
}
