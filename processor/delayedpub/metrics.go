package delayedpub

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/embargo/metric"
)

// publisherMetrics holds Prometheus metrics for the delayed publisher.
type publisherMetrics struct {
	eventsTotal      *prometheus.CounterVec // By action (register/cancel/reregister/none/error)
	republishedTotal prometheus.Counter
	scansTotal       prometheus.Counter
	errors           *prometheus.CounterVec   // By error_type
	scanDuration     *prometheus.HistogramVec // By outcome (idle/due)
}

// newPublisherMetrics creates and registers delayed publisher metrics.
func newPublisherMetrics(registry *metric.Registry) (*publisherMetrics, error) {
	if registry == nil {
		return nil, nil
	}

	m := &publisherMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "delayedpub",
			Name:      "events_total",
			Help:      "Total change events by deadline-index action",
		}, []string{"action"}),

		republishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "delayedpub",
			Name:      "republished_total",
			Help:      "Total records republished into the input stream",
		}),

		scansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "delayedpub",
			Name:      "scans_total",
			Help:      "Total wall-clock scans executed",
		}),

		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "embargo",
			Subsystem: "delayedpub",
			Name:      "errors_total",
			Help:      "Total delayed publisher errors",
		}, []string{"error_type"}), // error_type: parse, event, scan

		scanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "embargo",
			Subsystem: "delayedpub",
			Name:      "scan_duration_seconds",
			Help:      "Wall-clock scan duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"outcome"}), // outcome: idle, due
	}

	if err := registry.RegisterCounterVec("delayedpub", "events_total", m.eventsTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("delayedpub", "errors", m.errors); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("delayedpub", "scan_duration", m.scanDuration); err != nil {
		return nil, err
	}

	if err := registry.RegisterCounter("delayedpub", "republished_total", m.republishedTotal); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter("delayedpub", "scans_total", m.scansTotal); err != nil {
		return nil, err
	}

	return m, nil
}

// recordEvent records the action taken for one change event.
func (m *publisherMetrics) recordEvent(action string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(action).Inc()
}

// recordError records a processing error.
func (m *publisherMetrics) recordError(errorType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errorType).Inc()
	m.eventsTotal.WithLabelValues("error").Inc()
}

// recordScan records one scan execution.
func (m *publisherMetrics) recordScan(republished int, d time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.Inc()
	outcome := "idle"
	if republished > 0 {
		outcome = "due"
		m.republishedTotal.Add(float64(republished))
	}
	m.scanDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
