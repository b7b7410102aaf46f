// Package metrics holds the prometheus collectors of the service. All
// collectors register on the default registry and are served by /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifai_analyses_total",
			Help: "Completed analyses by classification",
		},
		[]string{"classification"},
	)

	AnalysisRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifai_analysis_rejections_total",
			Help: "Analyses that could not produce a verdict",
		},
		[]string{"reason"}, // "no_frames", "extract_failed", "download_failed"
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verifai_stage_duration_seconds",
			Help:    "Duration of each analysis stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"}, // extract, spatial, temporal, forensic, metadata, aggregate
	)

	EngineScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "verifai_engine_score",
			Help:    "Distribution of per-engine scores",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"engine"},
	)

	FramesAnalyzed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verifai_frames_per_analysis",
			Help:    "Number of frames sampled per analysis",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 150},
		},
	)

	// Score cache
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verifai_score_cache_hits_total",
			Help: "Score cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verifai_score_cache_misses_total",
			Help: "Score cache misses",
		},
	)

	// Circuit breakers
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Requests through a circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordStage observes the duration of one analysis stage.
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordAnalysis counts a verdict and the engine scores behind it.
func RecordAnalysis(classification string, frames int, scores map[string]float64) {
	AnalysesTotal.WithLabelValues(classification).Inc()
	FramesAnalyzed.Observe(float64(frames))
	for engine, v := range scores {
		EngineScore.WithLabelValues(engine).Observe(v)
	}
}

func RecordRejection(reason string) {
	AnalysisRejections.WithLabelValues(reason).Inc()
}

func RecordCache(hit bool) {
	if hit {
		CacheHits.Inc()
		return
	}
	CacheMisses.Inc()
}

func RecordAPIRequest(method, endpoint string, status int, d time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}
