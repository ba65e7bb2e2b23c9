// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Job Metrics
	JobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Total number of jobs submitted to a queue",
		},
		[]string{"phase"},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_finished_total",
			Help: "Total number of finished jobs by outcome",
		},
		[]string{"phase", "status"}, // status: "succeeded", "skipped", "failed"
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "job_duration_seconds",
			Help: "Duration of job bodies in seconds",
			// Skipped jobs return in milliseconds, searches run for days.
			Buckets: []float64{0.01, 0.1, 1, 10, 60, 600, 3600, 6 * 3600, 24 * 3600, 5 * 24 * 3600},
		},
		[]string{"phase"},
	)

	JobsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobs_running",
			Help: "Current number of job bodies executing in this process",
		},
	)

	JobQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "job_queue_depth",
			Help: "Current number of jobs waiting for a worker",
		},
		[]string{"backend"},
	)

	// Planning Metrics
	ResolverVariantsPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_variants_planned_total",
			Help: "Total number of baseline variants that produced a job",
		},
		[]string{"phase"},
	)

	ResolverVariantsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_variants_dropped_total",
			Help: "Total number of baseline variants dropped before submission",
		},
		[]string{"phase", "reason"}, // reason: "absent", "not_folded", "not_similarity_based"
	)

	ResolverIncompatiblePairs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_incompatible_pairs_total",
			Help: "Total number of case pairs skipped for a benchmark or tuning mismatch",
		},
		[]string{"phase"},
	)

	PhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phase_duration_seconds",
			Help:    "Duration of experiment phases including the barrier wait",
			Buckets: []float64{1, 10, 60, 600, 3600, 6 * 3600, 24 * 3600, 7 * 24 * 3600},
		},
		[]string{"phase"},
	)

	// Storage Metrics
	ArtifactLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_loads_total",
			Help: "Total number of trained-recommender loads",
		},
		[]string{"result"}, // result: "found", "absent", "error"
	)

	DatasetEnsure = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_ensure_total",
			Help: "Total number of dataset completeness checks",
		},
		[]string{"result"}, // result: "complete", "built", "error"
	)

	// NATS Metrics
	NATSMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_published_total",
			Help: "Total number of messages published to NATS",
		},
		[]string{"subject"},
	)

	NATSMessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_consumed_total",
			Help: "Total number of messages consumed from NATS",
		},
		[]string{"subject"},
	)

	NATSPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_publish_failures_total",
			Help: "Total number of failed NATS publishes",
		},
		[]string{"subject"},
	)

	// Circuit Breaker Metrics
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
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordJobSubmitted records a job handed to a queue.
func RecordJobSubmitted(phase string) {
	JobsSubmitted.WithLabelValues(phase).Inc()
}

// RecordJobFinished records the outcome and duration of a job body.
func RecordJobFinished(phase, status string, duration time.Duration) {
	JobsFinished.WithLabelValues(phase, status).Inc()
	JobDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// TrackRunningJob tracks job bodies executing in this process.
func TrackRunningJob(inc bool) {
	if inc {
		JobsRunning.Inc()
	} else {
		JobsRunning.Dec()
	}
}

// UpdateQueueDepth sets the number of waiting jobs of a queue backend.
func UpdateQueueDepth(backend string, depth int) {
	JobQueueDepth.WithLabelValues(backend).Set(float64(depth))
}

// RecordVariantPlanned records a baseline variant that produced a job.
func RecordVariantPlanned(phase string) {
	ResolverVariantsPlanned.WithLabelValues(phase).Inc()
}

// RecordVariantDropped records a baseline variant dropped before submission.
func RecordVariantDropped(phase, reason string) {
	ResolverVariantsDropped.WithLabelValues(phase, reason).Inc()
}

// RecordIncompatiblePair records a skipped downstream/baseline case pair.
func RecordIncompatiblePair(phase string) {
	ResolverIncompatiblePairs.WithLabelValues(phase).Inc()
}

// RecordPhase records the duration of an experiment phase.
func RecordPhase(phase string, duration time.Duration) {
	PhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordArtifactLoad records a trained-recommender load.
func RecordArtifactLoad(found bool, err error) {
	switch {
	case err != nil:
		ArtifactLoads.WithLabelValues("error").Inc()
	case found:
		ArtifactLoads.WithLabelValues("found").Inc()
	default:
		ArtifactLoads.WithLabelValues("absent").Inc()
	}
}

// RecordDatasetEnsure records a dataset completeness check.
func RecordDatasetEnsure(result string) {
	DatasetEnsure.WithLabelValues(result).Inc()
}

// RecordNATSPublish records a publish attempt on a subject.
func RecordNATSPublish(subject string, err error) {
	if err != nil {
		NATSPublishFailures.WithLabelValues(subject).Inc()
		return
	}
	NATSMessagesPublished.WithLabelValues(subject).Inc()
}

// RecordNATSConsume records a message consumed from a subject.
func RecordNATSConsume(subject string) {
	NATSMessagesConsumed.WithLabelValues(subject).Inc()
}

// RecordCircuitBreakerRequest records a call through a circuit breaker.
func RecordCircuitBreakerRequest(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordCircuitBreakerTransition records a state change and updates the state gauge.
func RecordCircuitBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(circuitStateValue(to))
}

func circuitStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordRateLimitHit records a rejected API request.
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetAppInfo publishes the build information.
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
