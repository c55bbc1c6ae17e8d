package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records evaluation traffic and contention on the
// promotion counters.
type EngineMetrics struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	contention  prometheus.Counter
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotion_engine_evaluations_total",
		Help: "Engine runs by mode (preview/commit) and outcome.",
	}, []string{"mode", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promotion_engine_duration_seconds",
		Help:    "Duration of engine runs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	contention := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "promotion_engine_contention_retries_total",
		Help: "Commit re-runs caused by exhausted usage counters.",
	})
	reg.MustRegister(evaluations, duration, contention)
	return &EngineMetrics{
		evaluations: evaluations,
		duration:    duration,
		contention:  contention,
	}
}

// ObserveRun records one engine run.
func (m *EngineMetrics) ObserveRun(mode, outcome string, elapsed time.Duration) {
	if m == nil || m.evaluations == nil {
		return
	}
	m.evaluations.WithLabelValues(mode, outcome).Inc()
	m.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// IncContention counts one commit re-run.
func (m *EngineMetrics) IncContention() {
	if m == nil || m.contention == nil {
		return
	}
	m.contention.Inc()
}

// OrderMetrics records state machine traffic.
type OrderMetrics struct {
	transitions *prometheus.CounterVec
	conflicts   prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by target and outcome.",
	}, []string{"target", "outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_transition_conflicts_total",
		Help: "Optimistic-lock conflicts during order transitions.",
	})
	reg.MustRegister(transitions, conflicts)
	return &OrderMetrics{transitions: transitions, conflicts: conflicts}
}

// ObserveTransition records one transition attempt.
func (m *OrderMetrics) ObserveTransition(target, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(target, outcome).Inc()
}

// IncConflict counts one optimistic-lock conflict.
func (m *OrderMetrics) IncConflict() {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.Inc()
}
