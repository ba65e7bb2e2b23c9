// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package metrics provides Prometheus metrics for experiment runs.

Metrics are registered on the default registry through promauto and exposed
by the status API at /metrics:

	curl http://localhost:9464/metrics

# Available Metrics

Job metrics:
  - jobs_submitted_total: Jobs handed to a queue (counter, labels: phase)
  - jobs_finished_total: Job outcomes (counter, labels: phase, status)
  - job_duration_seconds: Job body duration (histogram, labels: phase)
  - jobs_running: Job bodies executing in this process (gauge)
  - job_queue_depth: Jobs waiting for a worker (gauge, labels: backend)

Planning metrics:
  - resolver_variants_planned_total: Baseline variants that produced a job (counter, labels: phase)
  - resolver_variants_dropped_total: Variants dropped before submission (counter, labels: phase, reason)
  - resolver_incompatible_pairs_total: Case pairs skipped for a benchmark or tuning mismatch (counter, labels: phase)
  - phase_duration_seconds: Planning plus waiting time of each barrier (histogram, labels: phase)

Storage metrics:
  - artifact_loads_total: Trained-recommender loads (counter, labels: result)
  - dataset_ensure_total: Dataset checks (counter, labels: result)

Broker metrics:
  - nats_messages_published_total, nats_messages_consumed_total (counters, labels: subject)
  - nats_publish_failures_total (counter, labels: subject)
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_consecutive_failures, circuit_breaker_state_transitions_total

API metrics:
  - api_requests_total, api_request_duration_seconds, api_rate_limit_hits_total
*/
package metrics
