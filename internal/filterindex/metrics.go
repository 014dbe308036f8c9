package filterindex

import (
	"context"
	"time"
)

// Metrics is an interface that is used for the collection of the filter index
// statistics.
type Metrics interface {
	// ObserveRefresh records the duration of a refresh of all filter lists.
	// err is the result of the refresh.
	ObserveRefresh(ctx context.Context, dur time.Duration, err error)
}

// EmptyMetrics is the implementation of the [Metrics] interface that does
// nothing.
type EmptyMetrics struct{}

// type check
var _ Metrics = EmptyMetrics{}

// ObserveRefresh implements the [Metrics] interface for EmptyMetrics.
func (EmptyMetrics) ObserveRefresh(_ context.Context, _ time.Duration, _ error) {}
