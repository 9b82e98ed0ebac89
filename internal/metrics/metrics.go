// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeOK           = "ok"
	OutcomeFailed       = "failed"
	OutcomeRejected     = "rejected"
	OutcomeNotConnected = "not_connected"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askdb_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_generations_total",
			Help: "Model calls by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	generationLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_generation_latency_seconds",
			Help:    "Wall time of a question-to-SQL translation, including introspection.",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
	)

	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_executions_total",
			Help: "Statement executions by outcome.",
		},
		[]string{"outcome"},
	)

	connectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_connects_total",
			Help: "Connect attempts by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		generationsTotal,
		generationLatencySeconds,
		executionsTotal,
		connectsTotal,
	)
}

// ObserveGeneration counts one translation attempt.
func ObserveGeneration(provider, outcome string, elapsed time.Duration) {
	generationsTotal.WithLabelValues(provider, outcome).Inc()
	generationLatencySeconds.Observe(elapsed.Seconds())
}

// ObserveExecution counts one execute or preview request.
func ObserveExecution(outcome string) {
	executionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveConnect counts one connect attempt.
func ObserveConnect(ok bool) {
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	connectsTotal.WithLabelValues(outcome).Inc()
}
