// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scriptgen"

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeTransport = "transport_error"
	OutcomeMalformed = "malformed_output"
	OutcomeShape     = "shape_violation"
)

var (
	AIAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "attempts_total",
			Help:      "Chat-completion attempts by outcome",
		},
		[]string{"outcome"},
	)

	AITransportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "transport_errors_total",
			Help:      "Failed chat-completion calls by error class",
		},
		[]string{"class"},
	)

	AIResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "results_total",
			Help:      "Pipeline invocations by final status",
		},
		[]string{"status"},
	)

	AIRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ai",
			Name:      "request_duration_seconds",
			Help:      "Chat-completion call latency",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ProjectsSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "projects_saved_total",
			Help:      "Projects written to the scripts directory",
		},
	)
)

func IncAttempt(outcome string) {
	AIAttemptsTotal.WithLabelValues(outcome).Inc()
}

func IncTransportError(class string) {
	AITransportErrorsTotal.WithLabelValues(class).Inc()
}

func IncResult(status string) {
	AIResultsTotal.WithLabelValues(status).Inc()
}

func ObserveRequest(d time.Duration) {
	AIRequestDuration.Observe(d.Seconds())
}
