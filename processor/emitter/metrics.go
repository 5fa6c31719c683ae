package emitter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/embargo/metric"
)

// emitterMetrics holds Prometheus metrics for the emitter processor.
type emitterMetrics struct {
	emittedTotal *prometheus.CounterVec // By kind (value/suppressed/tombstone/error)
	errors       *prometheus.CounterVec // By error_type
}

// newEmitterMetrics creates and registers emitter metrics.
func newEmitterMetrics(registry *metric.Registry) (*emitterMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &emitterMetrics{
		emittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "emitter",
			Name:      "emitted_total",
			Help:      "Total records emitted on the output stream",
		}, []string{"kind"}), // kind: value, suppressed, tombstone, error

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "emitter",
			Name:      "errors_total",
			Help:      "Total emitter processing errors",
		}, []string{"error_type"}), // error_type: parse, encode, publish
	}

	if err := registry.RegisterCounterVec("emitter", "emitted_total", m.emittedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("emitter", "errors", m.errors); err != nil {
		return nil, err
	}

	return m, nil
}

// recordEmission records one output record.
func (m *emitterMetrics) recordEmission(suppressed, tombstone bool) {
	if m == nil {
		return
	}

	kind := "value"
	switch {
	case suppressed:
		kind = "suppressed"
	case tombstone:
		kind = "tombstone"
	}
	m.emittedTotal.WithLabelValues(kind).Inc()
}

// recordError records a processing error.
func (m *emitterMetrics) recordError(errorType string) {
	if m == nil {
		return
	}

	m.errors.WithLabelValues(errorType).Inc()
	m.emittedTotal.WithLabelValues("error").Inc()
}
