// Package prometheus is the concrete observability.ServiceMetrics
// backend. It is the only place in the module that touches
// prometheus/client_golang, and it enforces the label cardinality rule
// by never accepting anything beyond method, protocol, and success.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agentstack/ras-go/pkg/observability"
)

// Metrics implements observability.ServiceMetrics on top of a
// prometheus.Registerer.
type Metrics struct {
	requestsStarted   *prometheus.CounterVec
	requestsCompleted *prometheus.CounterVec
	methodDuration    *prometheus.HistogramVec
}

// New registers the three metric families against reg. Pass
// prometheus.DefaultRegisterer for a process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requestsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_started_total",
			Help: "Requests received, labeled by method and protocol, before dispatch.",
		}, []string{"method", "protocol"}),
		requestsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "requests_completed_total",
			Help: "Requests completed, labeled by method, protocol, and success.",
		}, []string{"method", "protocol", "success"}),
		methodDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "method_duration_seconds",
			Help:    "Dispatch duration in seconds, labeled by method and protocol.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "protocol"}),
	}
}

// IncrementRequestsStarted implements observability.ServiceMetrics.
func (m *Metrics) IncrementRequestsStarted(method string, protocol observability.Protocol) {
	m.requestsStarted.WithLabelValues(method, string(protocol)).Inc()
}

// IncrementRequestsCompleted implements observability.ServiceMetrics.
func (m *Metrics) IncrementRequestsCompleted(method string, protocol observability.Protocol, success bool) {
	m.requestsCompleted.WithLabelValues(method, string(protocol), successLabel(success)).Inc()
}

// RecordMethodDuration implements observability.ServiceMetrics.
func (m *Metrics) RecordMethodDuration(method string, protocol observability.Protocol, elapsed time.Duration) {
	m.methodDuration.WithLabelValues(method, string(protocol)).Observe(elapsed.Seconds())
}

func successLabel(success bool) string {
	if success {
		return "true"
	}
	return "false"
}

// Handler returns the scrape endpoint handler, serving the
// Prometheus text exposition format for reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
