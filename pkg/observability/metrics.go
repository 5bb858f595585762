// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the mcpgate gateway.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM call latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks active SSE and WebSocket streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mcpgate_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// BackendRequestsTotal counts calls to LLM backends.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_backend_requests_total",
			Help: "Backend requests",
		},
		[]string{"backend", "status"},
	)

	// BackendLatency records backend call latency in seconds.
	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mcpgate_backend_latency_seconds",
			Help:    "Backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"backend"},
	)

	// BackendTokensTotal counts tokens reported by backends by direction.
	BackendTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_backend_tokens_total",
			Help: "Token count",
		},
		[]string{"backend", "direction"},
	)

	// ToolInvocationsTotal counts capability invocations by server, tool
	// and outcome.
	ToolInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_tool_invocations_total",
			Help: "Tool invocations",
		},
		[]string{"server", "tool", "status"},
	)

	// GateDecisionsTotal counts gate round outcomes ("tools" or "no_tools").
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_gate_decisions_total",
			Help: "Gate decisions",
		},
		[]string{"decision"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mcpgate_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		BackendRequestsTotal,
		BackendLatency,
		BackendTokensTotal,
		ToolInvocationsTotal,
		GateDecisionsTotal,
		RateLimitRejectedTotal,
	)
}
