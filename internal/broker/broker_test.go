// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package broker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
)

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(&ServerConfig{
		Host:     "127.0.0.1",
		Port:     -1,
		StoreDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewEmbeddedServer failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx) //nolint:errcheck
	})
	return srv
}

func TestConfig_Validate(t *testing.T) {
	base := DefaultConfig("nats://127.0.0.1:4222")

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"no url", func(c *Config) { c.URL = "" }, true},
		{"no stream", func(c *Config) { c.StreamName = "" }, true},
		{"no topic", func(c *Config) { c.JobsTopic = "" }, true},
		{"same topics", func(c *Config) { c.ResultsTopic = c.JobsTopic }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMaxBytes(t *testing.T) {
	if got := maxBytes(0); got != -1 {
		t.Errorf("maxBytes(0) = %d, want -1", got)
	}
	if got := maxBytes(1024); got != 1024 {
		t.Errorf("maxBytes(1024) = %d, want 1024", got)
	}
}

func TestEmbeddedServer_Provision(t *testing.T) {
	srv := startServer(t)
	if !srv.IsRunning() {
		t.Fatal("IsRunning() = false, want true")
	}

	cfg := DefaultConfig(srv.ClientURL())
	ctx := context.Background()
	if err := Provision(ctx, &cfg); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	// Second call updates the existing stream.
	if err := Provision(ctx, &cfg); err != nil {
		t.Fatalf("Provision (update) failed: %v", err)
	}
}

func TestBroker_RoundTrip(t *testing.T) {
	srv := startServer(t)
	logger := zerolog.New(io.Discard)

	cfg := DefaultConfig(srv.ClientURL())
	cfg.CloseTimeout = 5 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := Provision(ctx, &cfg); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	pub, err := NewPublisher(&cfg, logger)
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	defer pub.Close() //nolint:errcheck

	results, err := NewResultsSubscriber(&cfg, logger)
	if err != nil {
		t.Fatalf("NewResultsSubscriber failed: %v", err)
	}
	defer results.Close() //nolint:errcheck

	jobs, err := NewWorkerSubscriber(&cfg, logger)
	if err != nil {
		t.Fatalf("NewWorkerSubscriber failed: %v", err)
	}
	defer jobs.Close() //nolint:errcheck

	registry := jobqueue.NewRegistry(logger)
	registry.Register("ok", func(context.Context, jobqueue.Job) error { return nil })
	registry.Register("skip", func(context.Context, jobqueue.Job) error {
		return jobqueue.Skip("missing artifact")
	})
	registry.Register("fail", func(context.Context, jobqueue.Job) error {
		return errors.New("boom")
	})

	worker := jobqueue.NewWorker(jobs, pub, registry, jobqueue.WorkerConfig{
		JobsTopic:    cfg.JobsTopic,
		ResultsTopic: cfg.ResultsTopic,
		Name:         "broker-test",
	}, logger)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = worker.Serve(workerCtx) //nolint:errcheck
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	obs := &outcomeRecorder{outcomes: make(map[string]jobqueue.Status)}

	d, err := jobqueue.NewDispatcher(ctx, pub, results, jobqueue.DispatcherConfig{
		JobsTopic:    cfg.JobsTopic,
		ResultsTopic: cfg.ResultsTopic,
	}, obs, logger)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	defer d.Close() //nolint:errcheck

	for i, method := range []string{"ok", "skip", "fail"} {
		job := jobqueue.Job{Key: method + "|job", Priority: int64(i), Phase: "test", Method: method}
		if err := d.Submit(ctx, job); err != nil {
			t.Fatalf("Submit(%s) failed: %v", method, err)
		}
	}
	if err := d.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	want := map[string]jobqueue.Status{
		"ok|job":   jobqueue.StatusSucceeded,
		"skip|job": jobqueue.StatusSkipped,
		"fail|job": jobqueue.StatusFailed,
	}
	deadline := time.Now().Add(5 * time.Second)
	for obs.len() < len(want) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for key, status := range want {
		if got := obs.get(key); got != status {
			t.Errorf("outcome[%s] = %q, want %q", key, got, status)
		}
	}
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes map[string]jobqueue.Status
}

func (r *outcomeRecorder) JobSubmitted(jobqueue.Job) {}
func (r *outcomeRecorder) JobStarted(jobqueue.Job)   {}

func (r *outcomeRecorder) JobFinished(job jobqueue.Job, o jobqueue.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[job.Key] = o.Status
}

func (r *outcomeRecorder) get(key string) jobqueue.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[key]
}

func (r *outcomeRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}
