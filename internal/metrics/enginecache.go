package metrics

import (
	"context"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock"
	"github.com/AdguardTeam/AdGuardContentBlocker/internal/adblock/enginecache"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// EngineCache is the Prometheus-based implementation of the
// [enginecache.Metrics] interface.
type EngineCache struct {
	// compileDuration is a histogram with the duration of engine compilations
	// labeled by source kind.
	compileDuration *prometheus.HistogramVec

	// compileErrors is a counter of failed engine compilations labeled by
	// source kind.
	compileErrors *prometheus.CounterVec

	// cachedEngines is a gauge with the number of compiled engines.
	cachedEngines prometheus.Gauge
}

// NewEngineCache registers the engine cache metrics in reg and returns a
// properly initialized *EngineCache.
func NewEngineCache(namespace string, reg prometheus.Registerer) (m *EngineCache, err error) {
	const (
		compileDuration = "compile_duration_seconds"
		compileErrors   = "compile_errors_total"
		cachedEngines   = "cached_engines"
	)

	m = &EngineCache{
		compileDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:      compileDuration,
			Subsystem: subsystemEngineCache,
			Namespace: namespace,
			Help:      "Time elapsed on compiling a filter-list engine.",
			Buckets:   []float64{0.01, 0.1, 1, 5, 10, 30, 60},
		}, []string{"kind"}),
		compileErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:      compileErrors,
			Subsystem: subsystemEngineCache,
			Namespace: namespace,
			Help:      "The total number of failed filter-list engine compilations.",
		}, []string{"kind"}),
		cachedEngines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      cachedEngines,
			Subsystem: subsystemEngineCache,
			Namespace: namespace,
			Help:      "The number of compiled filter-list engines.",
		}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   compileDuration,
		Value: m.compileDuration,
	}, {
		Key:   compileErrors,
		Value: m.compileErrors,
	}, {
		Key:   cachedEngines,
		Value: m.cachedEngines,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ enginecache.Metrics = (*EngineCache)(nil)

// ObserveCompile implements the [enginecache.Metrics] interface for
// *EngineCache.
func (m *EngineCache) ObserveCompile(
	_ context.Context,
	kind adblock.SourceKind,
	dur time.Duration,
	err error,
) {
	k := kind.String()
	m.compileDuration.WithLabelValues(k).Observe(dur.Seconds())
	if err != nil {
		m.compileErrors.WithLabelValues(k).Inc()
	}
}

// SetCachedEngines implements the [enginecache.Metrics] interface for
// *EngineCache.
func (m *EngineCache) SetCachedEngines(_ context.Context, n int) {
	m.cachedEngines.Set(float64(n))
}
