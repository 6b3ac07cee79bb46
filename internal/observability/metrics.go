// Package observability holds the process-wide metrics, tracing and logger
// setup.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_stage_transitions_total",
			Help: "Workflow stage transitions",
		},
		[]string{"from", "to"},
	)

	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_evaluations_total",
			Help: "Graded attempts by outcome (correct, incorrect, error)",
		},
		[]string{"outcome"},
	)

	evaluationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lessonloop_evaluation_duration_seconds",
			Help:    "Time spent in the evaluation collaborator",
			Buckets: prometheus.DefBuckets,
		},
	)

	sessionsFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_sessions_finished_total",
			Help: "Sessions that reached the done stage, by end reason",
		},
		[]string{"reason"},
	)

	responsesIgnored = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_responses_ignored_total",
			Help: "Delivered responses that were dropped",
		},
		[]string{"reason"},
	)

	storeConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lessonloop_store_conflicts_total",
			Help: "Optimistic-concurrency conflicts when committing session state",
		},
	)

	llmRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_llm_retries_total",
			Help: "LLM calls retried after a transient failure",
		},
		[]string{"reason"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lessonloop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lessonloop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	initOnce sync.Once
)

// InitMetrics registers the collectors with the default registry. Safe to
// call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			transitionsTotal,
			evaluationsTotal,
			evaluationDuration,
			sessionsFinished,
			responsesIgnored,
			storeConflicts,
			llmRetries,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTransition counts a stage change.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordEvaluation counts a graded attempt and its latency.
func RecordEvaluation(outcome string, d time.Duration) {
	evaluationsTotal.WithLabelValues(outcome).Inc()
	evaluationDuration.Observe(d.Seconds())
}

// RecordFinished counts a session reaching done.
func RecordFinished(reason string) {
	sessionsFinished.WithLabelValues(reason).Inc()
}

// RecordIgnored counts a dropped response.
func RecordIgnored(reason string) {
	responsesIgnored.WithLabelValues(reason).Inc()
}

// RecordConflict counts a lost optimistic-concurrency race.
func RecordConflict() {
	storeConflicts.Inc()
}

// RecordLLMRetry counts a retried provider call.
func RecordLLMRetry(reason string) {
	llmRetries.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
