// Package metrics exposes Prometheus counters for request edits and sends.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	mutations   *prometheus.CounterVec
	submissions *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// New builds a private registry so tests can create as many as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viatico",
			Name:      "request_mutations_total",
			Help:      "Edits applied to request drafts, by operation.",
		}, []string{"op"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "viatico",
			Name:      "submissions_total",
			Help:      "Email send attempts, by result.",
		}, []string{"status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "viatico",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		m.mutations,
		m.submissions,
		m.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Mutation(op string) {
	m.mutations.WithLabelValues(op).Inc()
}

func (m *Metrics) Submission(status string) {
	m.submissions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveHTTP(method, status string, seconds float64) {
	m.httpLatency.WithLabelValues(method, status).Observe(seconds)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
