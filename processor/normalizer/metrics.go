package normalizer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/embargo/metric"
)

// normalizerMetrics holds Prometheus metrics for the normalizer processor.
type normalizerMetrics struct {
	recordsTotal *prometheus.CounterVec   // By status (rewritten/passthrough/error)
	errors       *prometheus.CounterVec   // By error_type
	duration     *prometheus.HistogramVec // Normalization duration
}

// newNormalizerMetrics creates and registers normalizer metrics.
func newNormalizerMetrics(registry *metric.Registry) (*normalizerMetrics, error) {
	if registry == nil {
		return nil, nil // Metrics disabled
	}

	m := &normalizerMetrics{
		recordsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "normalizer",
			Name:      "records_total",
			Help:      "Total number of records processed by the normalizer",
		}, []string{"status"}), // status: rewritten, passthrough, error

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "normalizer",
			Name:      "errors_total",
			Help:      "Total number of normalizer processing errors",
		}, []string{"error_type"}), // error_type: parse, encode, publish

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embargo",
			Subsystem: "normalizer",
			Name:      "duration_seconds",
			Help:      "Record normalization duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"status"}),
	}

	if err := registry.RegisterCounterVec("normalizer", "records_total", m.recordsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("normalizer", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("normalizer", "duration", m.duration); err != nil {
		return nil, err
	}

	return m, nil
}

// recordNormalized records a successful normalization.
func (m *normalizerMetrics) recordNormalized(rewritten bool, d time.Duration) {
	if m == nil {
		return
	}

	status := "passthrough"
	if rewritten {
		status = "rewritten"
	}
	m.recordsTotal.WithLabelValues(status).Inc()
	m.duration.WithLabelValues(status).Observe(d.Seconds())
}

// recordError records a processing error.
func (m *normalizerMetrics) recordError(errorType string) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(errorType).Inc()
	m.recordsTotal.WithLabelValues("error").Inc()
}
