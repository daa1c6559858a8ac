package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics manages the Prometheus metrics of the gateway.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AdmissionDecisions  *prometheus.CounterVec
	RateLimitDenials    *prometheus.CounterVec
	LimiterFallbacks    prometheus.Counter
	UpstreamAttempts    *prometheus.CounterVec
	UpstreamLatency     *prometheus.HistogramVec
}

// NewMetrics creates and registers the Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcs_gateway_http_requests_total",
				Help: "Total number of HTTP requests handled.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcs_gateway_http_request_duration_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AdmissionDecisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcs_gateway_admission_decisions_total",
				Help: "Admission pipeline stage outcomes.",
			},
			[]string{"stage", "result"},
		),
		RateLimitDenials: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcs_gateway_rate_limit_denials_total",
				Help: "Requests denied by the fixed-window rate limiter.",
			},
			[]string{"tenant_id", "graph"},
		),
		LimiterFallbacks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mcs_gateway_rate_limit_fallbacks_total",
				Help: "Rate limit checks degraded to the in-process store.",
			},
		),
		UpstreamAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mcs_gateway_upstream_attempts_total",
				Help: "Outbound orchestrator attempts by status.",
			},
			[]string{"status", "retried"},
		),
		UpstreamLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mcs_gateway_upstream_latency_seconds",
				Help:    "Latency of outbound orchestrator attempts.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}
}

// RecordAdmission records one pipeline stage outcome.
func (m *Metrics) RecordAdmission(stage, result string) {
	m.AdmissionDecisions.WithLabelValues(stage, result).Inc()
}

// RecordRateLimitDenial records a quota denial.
func (m *Metrics) RecordRateLimitDenial(tenantID, graphName string) {
	m.RateLimitDenials.WithLabelValues(tenantID, graphName).Inc()
}

// RecordLimiterFallback records a degradation to the in-process counter store.
func (m *Metrics) RecordLimiterFallback() {
	m.LimiterFallbacks.Inc()
}

// RecordUpstreamAttempt records one outbound attempt. Status 0 means no
// response was received.
func (m *Metrics) RecordUpstreamAttempt(status int, retried bool, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.UpstreamAttempts.WithLabelValues(statusLabel, strconv.FormatBool(retried)).Inc()
	m.UpstreamLatency.WithLabelValues(statusLabel).Observe(duration.Seconds())
}
