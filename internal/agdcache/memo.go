package agdcache

import (
	"fmt"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
)

// MemoKind is the kind of a memoization cache created by [NewMemo].
type MemoKind string

// Valid [MemoKind] values.
const (
	MemoKindFIFO MemoKind = "fifo"
	MemoKindLRU  MemoKind = "lru"
)

// MemoConfig is the configuration structure for memoization caches of query
// results.
type MemoConfig struct {
	// Kind is the kind of the cache.  It must be a valid [MemoKind].
	Kind MemoKind

	// MaxBuckets is the maximum number of buckets for [MemoKindFIFO].  For
	// [MemoKindLRU] the total capacity is MaxBuckets * BucketSize.  It must be
	// positive.
	MaxBuckets int

	// BucketSize is the nominal size of a bucket.  It must be positive.
	BucketSize int
}

// DefaultMemoConfig returns the default memoization cache configuration.
func DefaultMemoConfig() (c *MemoConfig) {
	return &MemoConfig{
		Kind:       MemoKindFIFO,
		MaxBuckets: DefaultFIFOMaxBuckets,
		BucketSize: DefaultFIFOBucketSize,
	}
}

// type check
var _ validate.Interface = (*MemoConfig)(nil)

// Validate implements the [validate.Interface] interface for *MemoConfig.
func (c *MemoConfig) Validate() (err error) {
	if c == nil {
		return errors.ErrNoValue
	}

	errs := []error{
		validate.Positive("max_buckets", c.MaxBuckets),
		validate.Positive("bucket_size", c.BucketSize),
	}

	switch c.Kind {
	case MemoKindFIFO, MemoKindLRU:
		// Go on.
	default:
		errs = append(errs, fmt.Errorf("kind: %w: %q", errors.ErrBadEnumValue, c.Kind))
	}

	return errors.Join(errs...)
}

// NewMemo returns a new memoization cache of the kind set in c.  c must not be
// nil and must be valid.
func NewMemo[K comparable, T any](c *MemoConfig) (cache Interface[K, T]) {
	switch c.Kind {
	case MemoKindFIFO:
		return NewFIFO[K, T](&FIFOConfig{
			MaxBuckets: c.MaxBuckets,
			BucketSize: c.BucketSize,
		})
	case MemoKindLRU:
		return NewLRU[K, T](&LRUConfig{
			Count: c.MaxBuckets * c.BucketSize,
		})
	default:
		panic(fmt.Errorf("agdcache: memo kind: %w: %q", errors.ErrBadEnumValue, c.Kind))
	}
}
