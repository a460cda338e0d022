package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the deletion workflow.
// Tracks phase transitions, destructive operation latency and long-poll waiters.
type Metrics struct {
	Transitions        *prometheus.CounterVec
	RemoveDuration     prometheus.Histogram
	StatusWaiters      prometheus.Gauge
	StatusWaitDuration prometheus.Histogram
}

// New creates a Metrics instance registered with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "casevault_deletion_transitions_total",
			Help: "Total number of deletion workflow transitions by target phase",
		}, []string{"phase"}),
		RemoveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "casevault_deletion_remove_duration_seconds",
			Help:    "Duration of destructive remove calls against the record store",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		StatusWaiters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "casevault_deletion_status_waiters",
			Help: "Number of status requests currently blocked waiting for a terminal phase",
		}),
		StatusWaitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "casevault_deletion_status_wait_seconds",
			Help:    "Time status requests spent waiting before returning",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
	}
}

// IncrementTransition records a transition into phase.
func (m *Metrics) IncrementTransition(phase string) {
	m.Transitions.WithLabelValues(phase).Inc()
}

// ObserveRemove records the duration of a destructive remove call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRemove(start time.Time) {
	m.RemoveDuration.Observe(time.Since(start).Seconds())
}

// WaiterStarted marks a status request entering its wait. The returned func
// marks it leaving and records the time spent.
func (m *Metrics) WaiterStarted() func() {
	start := time.Now()
	m.StatusWaiters.Inc()
	return func() {
		m.StatusWaiters.Dec()
		m.StatusWaitDuration.Observe(time.Since(start).Seconds())
	}
}
