package cmd

import (
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/agdcache"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// cacheConfig is the configuration of the memoization caches of the query
// results of every engine.
type cacheConfig struct {
	// Kind is the kind of the caches.  See [agdcache.MemoKind].
	Kind agdcache.MemoKind `yaml:"kind"`

	// MaxBuckets is the maximum number of buckets of a FIFO cache.  For the
	// LRU caches, the capacity is max_buckets * bucket_size.
	MaxBuckets int `yaml:"max_buckets"`

	// BucketSize is the nominal number of entries in a bucket.
	BucketSize int `yaml:"bucket_size"`
}

// type check
var _ validate.Interface = (*cacheConfig)(nil)

// Validate implements the [validate.Interface] interface for *cacheConfig.
func (c *cacheConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return c.toInternal().Validate()
}

// toInternal converts c to the memoization cache configuration.  c must not be
// nil.
func (c *cacheConfig) toInternal() (conf *agdcache.MemoConfig) {
	return &agdcache.MemoConfig{
		Kind:       c.Kind,
		MaxBuckets: c.MaxBuckets,
		BucketSize: c.BucketSize,
	}
}

// domainParserConfig is the configuration of the public suffix list parser.
type domainParserConfig struct {
	// CacheSize is the number of parsed hosts kept in memory.  Zero disables
	// the cache.
	CacheSize int `yaml:"cache_size"`

	// QuickParsing, if true, makes the parser ignore the exception and
	// wildcard rules of the list.
	QuickParsing bool `yaml:"quick_parsing"`
}

// type check
var _ validate.Interface = (*domainParserConfig)(nil)

// Validate implements the [validate.Interface] interface for
// *domainParserConfig.
func (c *domainParserConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	return validate.NotNegative("cache_size", c.CacheSize)
}
