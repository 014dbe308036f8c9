package enginecache

import (
	"context"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
)

// Metrics is an interface that is used for the collection of the engine cache
// statistics.
type Metrics interface {
	// ObserveCompile records the duration of a compilation of an engine for a
	// source of the kind.  err is the result of the compilation.
	ObserveCompile(ctx context.Context, kind adblock.SourceKind, dur time.Duration, err error)

	// SetCachedEngines sets the number of compiled engines in the cache.
	SetCachedEngines(ctx context.Context, n int)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveCompile implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveCompile(
	_ context.Context,
	_ adblock.SourceKind,
	_ time.Duration,
	_ error,
) {
}

// SetCachedEngines implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetCachedEngines(_ context.Context, _ int) {}
