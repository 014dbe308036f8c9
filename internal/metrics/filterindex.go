package metrics

import (
	"context"
	"time"

	"github.com/AdguardTeam/AdGuardContentBlocker/internal/filterindex"
	"github.com/AdguardTeam/golibs/container"
	"github.com/prometheus/client_golang/prometheus"
)

// FilterIndex is the Prometheus-based implementation of the
// [filterindex.Metrics] interface.
type FilterIndex struct {
	// refreshDuration is a histogram with the duration of the refreshes of all
	// filter lists.
	refreshDuration prometheus.Histogram

	// refreshStatus is a gauge with the status of the last refresh, 1 meaning
	// success and 0 meaning failure.
	refreshStatus prometheus.Gauge

	// refreshTime is a gauge with the time of the last successful refresh.
	refreshTime prometheus.Gauge
}

// NewFilterIndex registers the filter index metrics in reg and returns a
// properly initialized *FilterIndex.
func NewFilterIndex(namespace string, reg prometheus.Registerer) (m *FilterIndex, err error) {
	const (
		refreshDuration = "refresh_duration_seconds"
		refreshStatus   = "refresh_status"
		refreshTime     = "refresh_time_seconds"
	)

	m = &FilterIndex{
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:      refreshDuration,
			Subsystem: subsystemFilterIndex,
			Namespace: namespace,
			Help:      "Time elapsed on refreshing all filter lists.",
			Buckets:   []float64{0.1, 1, 5, 10, 30, 60, 120},
		}),
		refreshStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshStatus,
			Subsystem: subsystemFilterIndex,
			Namespace: namespace,
			Help:      "Status of the last filter-list refresh.  1 is okay, 0 means that something went wrong.",
		}),
		refreshTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:      refreshTime,
			Subsystem: subsystemFilterIndex,
			Namespace: namespace,
			Help:      "Time when the filter lists were last refreshed successfully.",
		}),
	}

	err = registerAll(reg, container.KeyValues[string, prometheus.Collector]{{
		Key:   refreshDuration,
		Value: m.refreshDuration,
	}, {
		Key:   refreshStatus,
		Value: m.refreshStatus,
	}, {
		Key:   refreshTime,
		Value: m.refreshTime,
	}})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// type check
var _ filterindex.Metrics = (*FilterIndex)(nil)

// ObserveRefresh implements the [filterindex.Metrics] interface for
// *FilterIndex.
func (m *FilterIndex) ObserveRefresh(_ context.Context, dur time.Duration, err error) {
	m.refreshDuration.Observe(dur.Seconds())
	SetStatusGauge(m.refreshStatus, err)
	if err == nil {
		m.refreshTime.SetToCurrentTime()
	}
}
