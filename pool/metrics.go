package pool

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the instrumentation for a single pool.
type Metrics struct {
	operations *prometheus.CounterVec
	failures   *prometheus.CounterVec
}

// NewMetrics creates the metrics for one pool and registers them with the
// given registerer. The pool address becomes a const label so several
// pools can share a registerer. A nil registerer yields working but
// unregistered collectors, so callers that do not scrape can skip wiring
// one.
func NewMetrics(registry prometheus.Registerer, poolAddress string) *Metrics {
	labels := prometheus.Labels{"pool": poolAddress}
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rangepool",
			Name:        "operations_total",
			Help:        "Completed pool operations by kind.",
			ConstLabels: labels,
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "rangepool",
			Name:        "operation_failures_total",
			Help:        "Failed pool operations by kind.",
			ConstLabels: labels,
		}, []string{"op"}),
	}
	if registry != nil {
		registry.MustRegister(m.operations, m.failures)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	if err != nil {
		m.failures.WithLabelValues(op).Inc()
		return
	}
	m.operations.WithLabelValues(op).Inc()
}
