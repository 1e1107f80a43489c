// Package telemetry provides observability primitives for the control plane.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the control plane.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveRequests   prometheus.Gauge
	RateLimitRejects prometheus.Counter
	ForwarderErrors  prometheus.Counter
	TokensProcessed  *prometheus.CounterVec // labels: direction (input, output)
}

// NewMetrics creates and registers all metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxypal",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:                       "proxypal",
			Name:                            "request_duration_seconds",
			Help:                            "HTTP request duration in seconds.",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 0,
		}, []string{"method", "path"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "proxypal",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxypal",
			Name:      "ratelimit_rejects_total",
			Help:      "Total per-user rate limit rejections.",
		}),

		ForwarderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "proxypal",
			Name:      "forwarder_errors_total",
			Help:      "Total forward_request failures returned to end users as 502.",
		}),

		TokensProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proxypal",
			Name:      "tokens_processed_total",
			Help:      "Total tokens logged per usage record.",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ActiveRequests,
		m.RateLimitRejects,
		m.ForwarderErrors,
		m.TokensProcessed,
	)

	return m
}
