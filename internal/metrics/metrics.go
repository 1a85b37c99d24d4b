// Package metrics exposes prometheus counters for lock transitions, snoozes,
// cross-process requests and schedule evaluation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "locked"

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	snoozes     *prometheus.CounterVec
	relay       *prometheus.CounterVec
	evaluations prometheus.Counter
	locked      prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Lock session transitions by operation and whether they were applied.",
		}, []string{"op", "applied"}),
		snoozes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snoozes_total",
			Help:      "Snooze attempts by outcome.",
		}, []string{"outcome"}),
		relay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_requests_total",
			Help:      "Cross-process snooze requests consumed, by outcome.",
		}, []string{"outcome"}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_evaluations_total",
			Help:      "Schedule evaluator ticks.",
		}),
		locked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locking",
			Help:      "1 while the shield is active.",
		}),
	}
	m.registry.MustRegister(m.transitions, m.snoozes, m.relay, m.evaluations, m.locked)
	return m
}

// Transition records a lock session operation.
func (m *Metrics) Transition(op string, applied bool) {
	if m == nil {
		return
	}
	a := "false"
	if applied {
		a = "true"
	}
	m.transitions.WithLabelValues(op, a).Inc()
}

// SetLocking mirrors the controller's locking flag.
func (m *Metrics) SetLocking(locking bool) {
	if m == nil {
		return
	}
	if locking {
		m.locked.Set(1)
	} else {
		m.locked.Set(0)
	}
}

// Snooze records a snooze attempt.
func (m *Metrics) Snooze(outcome string) {
	if m == nil {
		return
	}
	m.snoozes.WithLabelValues(outcome).Inc()
}

// Relay records a consumed cross-process request.
func (m *Metrics) Relay(outcome string) {
	if m == nil {
		return
	}
	m.relay.WithLabelValues(outcome).Inc()
}

// Evaluation records a schedule evaluator tick.
func (m *Metrics) Evaluation() {
	if m == nil {
		return
	}
	m.evaluations.Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
