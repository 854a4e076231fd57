package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	events      *prometheus.CounterVec
	generations *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	replies     *prometheus.CounterVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemrelay",
			Name:      "webhook_events_total",
			Help:      "Webhook events received, by kind.",
		}, []string{"kind"}),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemrelay",
			Name:      "generations_total",
			Help:      "Generation attempts, by engine, mode and outcome.",
		}, []string{"engine", "mode", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gemrelay",
			Name:      "generation_duration_seconds",
			Help:      "Generation latency including cache lookups.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"engine"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gemrelay",
			Name:      "line_messages_total",
			Help:      "Outbound LINE API calls, by api and result.",
		}, []string{"api", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events, m.generations, m.latency, m.replies,
	)
	return m
}

// Event counts one inbound webhook event.
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// Generation records one generation attempt. outcome is "ok", "cached" or "error".
func (m *Metrics) Generation(engine, mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(engine, mode, outcome).Inc()
	m.latency.WithLabelValues(engine).Observe(d.Seconds())
}

// Outbound records one reply or push call.
func (m *Metrics) Outbound(api string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.replies.WithLabelValues(api, result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
