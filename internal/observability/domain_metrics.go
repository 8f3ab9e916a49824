package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_questions_total",
			Help: "Total number of answered questions by query type.",
		},
		[]string{"query_type"},
	)
	classifierDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insights_classifier_decisions_total",
			Help: "Total number of classifier decisions by matched signal.",
		},
		[]string{"signal"},
	)
	generationRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_generation_retries_total",
			Help: "Total number of retried model generation calls.",
		},
	)
	generationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_generation_failures_total",
			Help: "Total number of model generation calls that exhausted retries.",
		},
	)
	lookupFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_lookup_fallbacks_total",
			Help: "Total number of lookup questions answered via the summary fallback.",
		},
	)
	sandboxTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_sandbox_timeouts_total",
			Help: "Total number of sandbox executions aborted by the time limit.",
		},
	)
	sandboxTruncationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "insights_sandbox_truncations_total",
			Help: "Total number of sandbox results clipped to the row limit.",
		},
	)
	sandboxDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insights_sandbox_duration_ms",
			Help:    "Sandbox execution time in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000, 5000},
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "insights_active_sessions",
			Help: "Current count of live dataset sessions.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		classifierDecisionsTotal,
		generationRetriesTotal,
		generationFailuresTotal,
		lookupFallbacksTotal,
		sandboxTimeoutsTotal,
		sandboxTruncationsTotal,
		sandboxDurationMs,
		activeSessions,
	)
}

func ObserveQuestion(queryType string) {
	questionsTotal.WithLabelValues(queryType).Inc()
}

func ObserveClassifierDecision(signal string) {
	classifierDecisionsTotal.WithLabelValues(signal).Inc()
}

func IncrementGenerationRetry() {
	generationRetriesTotal.Inc()
}

func IncrementGenerationFailure() {
	generationFailuresTotal.Inc()
}

func IncrementLookupFallback() {
	lookupFallbacksTotal.Inc()
}

func ObserveSandboxRun(elapsed time.Duration, truncated bool) {
	sandboxDurationMs.Observe(float64(elapsed.Milliseconds()))
	if truncated {
		sandboxTruncationsTotal.Inc()
	}
}

func IncrementSandboxTimeout() {
	sandboxTimeoutsTotal.Inc()
}

func SetActiveSessions(count int) {
	if count < 0 {
		count = 0
	}
	activeSessions.Set(float64(count))
}
