// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

const (
	defaultPublishAttempts = 5
	defaultPublishBackoff  = 100 * time.Millisecond
	maxPublishBackoff      = 5 * time.Second
)

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	JobsTopic    string
	ResultsTopic string

	// Name identifies the worker in outcomes; defaults to the host name.
	Name string

	// PublishAttempts bounds outcome publishes per job (default 5).
	// PublishBackoff is the first delay between them, doubled per retry
	// up to five seconds (default 100ms).
	PublishAttempts int
	PublishBackoff  time.Duration
}

// Worker consumes jobs from the broker, runs them through the registry and
// publishes their outcomes. It implements suture.Service.
type Worker struct {
	subscriber message.Subscriber
	publisher  message.Publisher
	registry   *Registry
	cfg        WorkerConfig
	logger     zerolog.Logger
}

// NewWorker creates a Worker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWorker(sub message.Subscriber, pub message.Publisher, registry *Registry, cfg WorkerConfig, logger zerolog.Logger) *Worker {
	if cfg.Name == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Name = fmt.Sprintf("%s-%d", host, os.Getpid())
		}
	}
	if cfg.PublishAttempts < 1 {
		cfg.PublishAttempts = defaultPublishAttempts
	}
	if cfg.PublishBackoff <= 0 {
		cfg.PublishBackoff = defaultPublishBackoff
	}
	return &Worker{
		subscriber: sub,
		publisher:  pub,
		registry:   registry,
		cfg:        cfg,
		logger:     logger.With().Str("component", "job_worker").Str("worker", cfg.Name).Logger(),
	}
}

// Serve consumes jobs until ctx is canceled.
func (w *Worker) Serve(ctx context.Context) error {
	jobs, err := w.subscriber.Subscribe(ctx, w.cfg.JobsTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", w.cfg.JobsTopic, err)
	}

	w.logger.Info().
		Str("topic", w.cfg.JobsTopic).
		Strs("methods", w.registry.Methods()).
		Msg("Worker consuming jobs")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-jobs:
			if !ok {
				return ctx.Err()
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg *message.Message) {
	metrics.RecordNATSConsume(w.cfg.JobsTopic)

	var job Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// Redelivery cannot fix a malformed payload.
		w.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable job")
		msg.Ack()
		return
	}

	// Handlers run to completion even while the worker shuts down.
	outcome := w.registry.Execute(context.WithoutCancel(ctx), job)
	outcome.Worker = w.cfg.Name

	if err := w.publishWithRetry(ctx, outcome); err != nil {
		w.logger.Error().
			Err(err).
			Str("key", job.Key).
			Int("attempts", w.cfg.PublishAttempts).
			Msg("Failed to publish outcome")
		msg.Nack()
		return
	}
	msg.Ack()
}

// publishWithRetry publishes outcome, backing off between failed attempts.
// The job already ran, so its outcome is retried rather than the job.
func (w *Worker) publishWithRetry(ctx context.Context, outcome Outcome) error {
	backoff := w.cfg.PublishBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = w.publishOutcome(outcome); err == nil {
			return nil
		}
		if attempt >= w.cfg.PublishAttempts {
			return err
		}

		w.logger.Warn().
			Err(err).
			Str("key", outcome.Key).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying outcome publish")

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (shutdown after %d attempts)", err, attempt)
		}
		backoff = min(2*backoff, maxPublishBackoff)
	}
}

func (w *Worker) publishOutcome(outcome Outcome) error {
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("encode outcome: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	err = w.publisher.Publish(w.cfg.ResultsTopic, msg)
	metrics.RecordNATSPublish(w.cfg.ResultsTopic, err)
	return err
}

// String implements fmt.Stringer for suture logging.
func (w *Worker) String() string {
	return "job-worker"
}
