// Package metrics contains definitions of the Prometheus metrics of the content
// blocker.
package metrics

import (
	"fmt"

	"github.com/AdguardTeam/golibs/container"
	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace is the default namespace of the metrics.
const Namespace = "cb"

// constants with the subsystem names that we use in our prometheus metrics.
const (
	subsystemApplication  = "app"
	subsystemContentBlock = "contentblocker"
	subsystemEngineCache  = "enginecache"
	subsystemFilterIndex  = "filterindex"
)

// SetUpGauge signals that the server has been started.  Use a function here to
// avoid circular dependencies.
func SetUpGauge(
	reg prometheus.Registerer,
	namespace string,
	version string,
	branch string,
	commitTime string,
	revision string,
	goversion string,
) (err error) {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "up",
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by ` +
			`version and goversion from which the program was built.`,
		ConstLabels: prometheus.Labels{
			"version":     version,
			"branch":      branch,
			"commit_time": commitTime,
			"revision":    revision,
			"goversion":   goversion,
		},
	})

	err = reg.Register(gauge)
	if err != nil {
		return fmt.Errorf("registering up gauge: %w", err)
	}

	gauge.Set(1)

	return nil
}

// SetStatusGauge is a helper function that automatically checks if there's an
// error and sets the gauge to either 1 (success) or 0 (error).
func SetStatusGauge(gauge prometheus.Gauge, err error) {
	if err == nil {
		gauge.Set(1)
	} else {
		gauge.Set(0)
	}
}

// BoolString returns "1" if cond is true and "0" otherwise.
func BoolString(cond bool) (s string) {
	if cond {
		return "1"
	}

	return "0"
}

// SetAdditionalInfo adds a gauge with extra info labels.  If info is nil,
// SetAdditionalInfo does nothing.
func SetAdditionalInfo(
	reg prometheus.Registerer,
	namespace string,
	info map[string]string,
) (err error) {
	if info == nil {
		return nil
	}

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "additional_info",
		Namespace: namespace,
		Subsystem: subsystemApplication,
		Help: `A metric with a constant '1' value labeled by additional ` +
			`info provided in configuration`,
		ConstLabels: info,
	})

	err = reg.Register(gauge)
	if err != nil {
		return fmt.Errorf("registering additional info gauge: %w", err)
	}

	gauge.Set(1)

	return nil
}

// registerAll registers the collectors in reg.  The errors of all collectors
// are returned.
func registerAll(
	reg prometheus.Registerer,
	collectors container.KeyValues[string, prometheus.Collector],
) (err error) {
	var errs []error
	for _, c := range collectors {
		err = reg.Register(c.Value)
		if err != nil {
			errs = append(errs, fmt.Errorf("registering metrics %q: %w", c.Key, err))
		}
	}

	return errors.Join(errs...)
}

// statusLabel returns the value of the status label for err.
func statusLabel(err error) (s string) {
	if err != nil {
		return "error"
	}

	return "success"
}
