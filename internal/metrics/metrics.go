// Package metrics exposes engagement counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "socialgraph"

// Metrics owns a private registry so tests can create as many as they like.
// A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	toggles       *prometheus.CounterVec
	comments      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	cascadeWrites prometheus.Counter
}

// New registers the counters and the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toggles_total",
			Help:      "Follow and like toggles by target kind, resulting state and outcome.",
		}, []string{"kind", "state", "outcome"}),
		comments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Comment additions and deletions by outcome.",
		}, []string{"op", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by type and delivery outcome.",
		}, []string{"type", "outcome"}),
		cascadeWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handle_cascade_writes_total",
			Help:      "Post documents rewritten by author snapshot cascades.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.toggles,
		m.comments,
		m.notifications,
		m.cascadeWrites,
	)
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Toggle records a follow or like toggle. active is the state requested.
func (m *Metrics) Toggle(kind string, active bool, err error) {
	if m == nil {
		return
	}
	state := "off"
	if active {
		state = "on"
	}
	m.toggles.WithLabelValues(kind, state, outcome(err)).Inc()
}

// Comment records an add or delete.
func (m *Metrics) Comment(op string, err error) {
	if m == nil {
		return
	}
	m.comments.WithLabelValues(op, outcome(err)).Inc()
}

// Notification records a delivery attempt. Suppressed self notifications
// are recorded with outcome "suppressed".
func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

// CascadeWrites adds n rewritten posts.
func (m *Metrics) CascadeWrites(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cascadeWrites.Add(float64(n))
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
