package contentblocker

import (
	"context"
	"time"
)

// Metrics is an interface that is used for the collection of the rule-list
// compilation statistics.
type Metrics interface {
	// ObserveCompile records the duration of a compilation of a rule-list
	// variant for the mode.  err is the result of the compilation.
	ObserveCompile(ctx context.Context, mode BlockingMode, dur time.Duration, err error)

	// SetCachedRuleLists sets the number of cached compilation results.
	SetCachedRuleLists(ctx context.Context, n int)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveCompile implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveCompile(_ context.Context, _ BlockingMode, _ time.Duration, _ error) {}

// SetCachedRuleLists implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) SetCachedRuleLists(_ context.Context, _ int) {}
