// Package metrics holds the Prometheus collectors for review runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the review collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	Reviews        *prometheus.CounterVec
	ReviewDuration *prometheus.HistogramVec
	AgentDecisions *prometheus.CounterVec
	Messages       *prometheus.CounterVec
	ActiveReviews  prometheus.Gauge
}

// New constructs a registry with all review collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reviews := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "magi_reviews_total",
		Help: "Review runs by terminal status",
	}, []string{"status"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "magi_review_duration_seconds",
		Help:    "Review run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "magi_agent_decisions_total",
		Help: "Completed agent verdicts by agent and decision",
	}, []string{"agent", "decision"})

	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "magi_gateway_messages_total",
		Help: "Inbound gateway messages by how the aggregator handled them",
	}, []string{"result"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "magi_active_reviews",
		Help: "Reviews currently holding a gateway session",
	})

	reg.MustRegister(reviews, durs, decisions, messages, active)

	return &Metrics{
		registry:       reg,
		Reviews:        reviews,
		ReviewDuration: durs,
		AgentDecisions: decisions,
		Messages:       messages,
		ActiveReviews:  active,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReview counts one finished run and its duration.
func (m *Metrics) RecordReview(status string, d time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.Reviews.WithLabelValues(status).Inc()
	m.ReviewDuration.WithLabelValues(status).Observe(d.Seconds())
}

// RecordDecision counts one agent verdict.
func (m *Metrics) RecordDecision(agent, decision string) {
	if m == nil {
		return
	}
	if decision == "" {
		decision = "unset"
	}
	m.AgentDecisions.WithLabelValues(agent, decision).Inc()
}

// RecordMessage counts one inbound gateway message.
func (m *Metrics) RecordMessage(result string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(result).Inc()
}

// ReviewStarted increments the active review gauge.
func (m *Metrics) ReviewStarted() {
	if m == nil {
		return
	}
	m.ActiveReviews.Inc()
}

// ReviewFinished decrements the active review gauge.
func (m *Metrics) ReviewFinished() {
	if m == nil {
		return
	}
	m.ActiveReviews.Dec()
}
