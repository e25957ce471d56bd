// Package observability provides Prometheus metrics, OpenTelemetry tracing
// and HTTP middleware for monitoring the identity gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// UpstreamBuckets defines histogram buckets for broker and flow latencies,
// ranging from 5ms to 10s.
var UpstreamBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Outcome label used for successful flows and upstream calls.
const StatusOK = "ok"

var (
	// RequestsTotal counts gateway flows by outcome. status is "ok" or the
	// error type returned to the caller.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_requests_total",
			Help: "Gateway flow invocations",
		},
		[]string{"flow", "status"},
	)

	// RequestDuration records end-to-end flow duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veda_request_duration_seconds",
			Help:    "Gateway flow duration",
			Buckets: UpstreamBuckets,
		},
		[]string{"flow"},
	)

	// HTTPRequestsTotal counts HTTP requests by method and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "status"},
	)

	// ResolutionFailuresTotal counts rejected credential resolutions by the
	// stage that rejected them (header, client_mismatch, user_token,
	// tenant_mismatch).
	ResolutionFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_resolution_failures_total",
			Help: "Credential resolution failures",
		},
		[]string{"stage"},
	)

	// UpstreamRequestsTotal counts calls to the identity broker.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_upstream_requests_total",
			Help: "Broker requests",
		},
		[]string{"operation", "status"},
	)

	// UpstreamLatency records broker latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "veda_upstream_latency_seconds",
			Help:    "Broker latency",
			Buckets: UpstreamBuckets,
		},
		[]string{"operation"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)

	// CredentialCacheTotal counts credential cache lookups by result
	// (hit, miss, error).
	CredentialCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veda_credential_cache_total",
			Help: "Credential cache lookups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		HTTPRequestsTotal,
		ResolutionFailuresTotal,
		UpstreamRequestsTotal,
		UpstreamLatency,
		RateLimitRejectedTotal,
		CredentialCacheTotal,
	)
}
