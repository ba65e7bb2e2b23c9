// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordJobLifecycle(t *testing.T) {
	before := testutil.ToFloat64(JobsSubmitted.WithLabelValues("test_lifecycle"))
	RecordJobSubmitted("test_lifecycle")
	if got := testutil.ToFloat64(JobsSubmitted.WithLabelValues("test_lifecycle")); got != before+1 {
		t.Errorf("jobs_submitted_total = %v, want %v", got, before+1)
	}

	tests := []struct {
		status   string
		duration time.Duration
	}{
		{"succeeded", 2 * time.Hour},
		{"skipped", 5 * time.Millisecond},
		{"failed", 30 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			counter := JobsFinished.WithLabelValues("test_lifecycle", tt.status)
			before := testutil.ToFloat64(counter)
			RecordJobFinished("test_lifecycle", tt.status, tt.duration)
			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("jobs_finished_total{status=%s} = %v, want %v", tt.status, got, before+1)
			}
		})
	}
}

func TestTrackRunningJob(t *testing.T) {
	before := testutil.ToFloat64(JobsRunning)
	TrackRunningJob(true)
	TrackRunningJob(true)
	TrackRunningJob(false)
	if got := testutil.ToFloat64(JobsRunning); got != before+1 {
		t.Errorf("jobs_running = %v, want %v", got, before+1)
	}
	TrackRunningJob(false)
}

func TestUpdateQueueDepth(t *testing.T) {
	UpdateQueueDepth("local", 7)
	if got := testutil.ToFloat64(JobQueueDepth.WithLabelValues("local")); got != 7 {
		t.Errorf("job_queue_depth = %v, want 7", got)
	}
}

func TestRecordArtifactLoad(t *testing.T) {
	tests := []struct {
		name   string
		found  bool
		err    error
		result string
	}{
		{"found", true, nil, "found"},
		{"absent", false, nil, "absent"},
		{"error", false, errors.New("checksum mismatch"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := ArtifactLoads.WithLabelValues(tt.result)
			before := testutil.ToFloat64(counter)
			RecordArtifactLoad(tt.found, tt.err)
			if got := testutil.ToFloat64(counter); got != before+1 {
				t.Errorf("artifact_loads_total{result=%s} = %v, want %v", tt.result, got, before+1)
			}
		})
	}
}

func TestRecordNATSPublish(t *testing.T) {
	published := NATSMessagesPublished.WithLabelValues("test.jobs")
	failures := NATSPublishFailures.WithLabelValues("test.jobs")
	p0, f0 := testutil.ToFloat64(published), testutil.ToFloat64(failures)

	RecordNATSPublish("test.jobs", nil)
	RecordNATSPublish("test.jobs", errors.New("no responders"))

	if got := testutil.ToFloat64(published); got != p0+1 {
		t.Errorf("published = %v, want %v", got, p0+1)
	}
	if got := testutil.ToFloat64(failures); got != f0+1 {
		t.Errorf("failures = %v, want %v", got, f0+1)
	}
}

func TestRecordCircuitBreakerTransition(t *testing.T) {
	tests := []struct {
		to   string
		want float64
	}{
		{"open", 2},
		{"half-open", 1},
		{"closed", 0},
	}
	from := "closed"
	for _, tt := range tests {
		RecordCircuitBreakerTransition("test-breaker", from, tt.to)
		if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test-breaker")); got != tt.want {
			t.Errorf("circuit_breaker_state after %s = %v, want %v", tt.to, got, tt.want)
		}
		from = tt.to
	}
}

func TestPlanningMetrics(t *testing.T) {
	dropped := ResolverVariantsDropped.WithLabelValues("test_planning", "absent")
	before := testutil.ToFloat64(dropped)

	RecordVariantPlanned("test_planning")
	RecordVariantDropped("test_planning", "absent")
	RecordIncompatiblePair("test_planning")
	RecordPhase("test_planning", 3*time.Minute)

	if got := testutil.ToFloat64(dropped); got != before+1 {
		t.Errorf("resolver_variants_dropped_total = %v, want %v", got, before+1)
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordJobSubmitted("test_concurrent")
			RecordAPIRequest("GET", "/api/v1/jobs", "200", time.Millisecond)
			RecordRateLimitHit("/api/v1/jobs")
			RecordDatasetEnsure("complete")
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(JobsSubmitted.WithLabelValues("test_concurrent")); got != 20 {
		t.Errorf("jobs_submitted_total = %v, want 20", got)
	}
}

func TestMetricGathering(t *testing.T) {
	SetAppInfo("test", "go1.25")

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, name := range []string{"app_info", "jobs_submitted_total", "job_queue_depth"} {
		if !found[name] {
			t.Errorf("metric %s not registered", name)
		}
	}
}
