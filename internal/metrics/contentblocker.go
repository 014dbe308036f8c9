package metrics

import (
	"context"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/contentblocker"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// ContentBlocker is the Prometheus-based implementation of the
// [contentblocker.Metrics] interface.
type ContentBlocker struct {
	// compileDuration is a histogram with the duration of rule-list
	// compilations labeled by mode and status.
	compileDuration *prometheus.HistogramVec

	// cachedRuleLists is a gauge with the number of memoized compilation
	// results.
	cachedRuleLists prometheus.Gauge
}

// NewContentBlocker registers the rule-list compilation metrics in reg and
// returns a properly initialized *ContentBlocker.
func NewContentBlocker(
	namespace string,
	reg prometheus.Registerer,
) (m *ContentBlocker, err error) {
	const (
		compileDuration = "compile_duration_seconds"
		cachedRuleLists = "cached_rule_lists"
	)

	m = &ContentBlocker{
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      compileDuration,
			Subsystem: subsystemContentBlock,
			Namespace: namespace,
			Help:      "Time elapsed on compiling a single rule-list variant.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 5, 10},
		}, []string{"mode", "status"}),
		cachedRuleLists: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      cachedRuleLists,
			Subsystem: subsystemContentBlock,
			Namespace: namespace,
			Help:      "The number of memoized rule-list compilation results.",
		}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   compileDuration,
		Value: m.compileDuration,
	}, {
		Key:   cachedRuleLists,
		Value: m.cachedRuleLists,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ contentblocker.Metrics = (*ContentBlocker)(nil)

// ObserveCompile implements the [contentblocker.Metrics] interface for
// *ContentBlocker.
func (m *ContentBlocker) ObserveCompile(
	_ context.Context,
	mode contentblocker.BlockingMode,
	dur time.Duration,
	err error,
) {
	m.compileDuration.WithLabelValues(mode.String(), statusLabel(err)).Observe(dur.Seconds())
}

// SetCachedRuleLists implements the [contentblocker.Metrics] interface for
// *ContentBlocker.
func (m *ContentBlocker) SetCachedRuleLists(_ context.Context, n int) {
	m.cachedRuleLists.Set(float64(n))
}
