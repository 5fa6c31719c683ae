package lookup

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/embargo/metric"
)

// lookupMetrics holds Prometheus metrics for the lookup table processor.
type lookupMetrics struct {
	updatesTotal *prometheus.CounterVec   // By kind (value/tombstone/error)
	errors       *prometheus.CounterVec   // By error_type
	duration     *prometheus.HistogramVec // Store update duration
}

// newLookupMetrics creates and registers lookup table metrics.
func newLookupMetrics(registry *metric.Registry) (*lookupMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &lookupMetrics{
		updatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "lookup",
			Name:      "updates_total",
			Help:      "Total number of materialized view updates",
		}, []string{"kind"}), // kind: value, tombstone, error

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "lookup",
			Name:      "errors_total",
			Help:      "Total number of lookup table processing errors",
		}, []string{"error_type"}), // error_type: parse, store, encode, publish

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embargo",
			Subsystem: "lookup",
			Name:      "update_duration_seconds",
			Help:      "View update duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),
	}

	if err := registry.RegisterCounterVec("lookup", "updates_total", m.updatesTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("lookup", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("lookup", "update_duration", m.duration); err != nil {
		return nil, err
	}

	return m, nil
}

// recordUpdate records a successful view update.
func (m *lookupMetrics) recordUpdate(tombstone bool, d time.Duration) {
	if m == nil {
		return
	}

	kind := "value"
	if tombstone {
		kind = "tombstone"
	}
	m.updatesTotal.WithLabelValues(kind).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

// recordError records a processing error.
func (m *lookupMetrics) recordError(errorType string) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(errorType).Inc()
	m.updatesTotal.WithLabelValues("error").Inc()
}
