// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

const (
	backendNATS  = "nats"
	closeTimeout = 10 * time.Second
)

// ErrDispatch is returned when jobs cannot be handed to the broker.
var ErrDispatch = errors.New("failed to dispatch jobs")

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	JobsTopic    string
	ResultsTopic string

	// PublishRate limits publishes per second; zero disables the limit.
	PublishRate  float64
	PublishBurst int

	// Breaker is the circuit breaker guarding publishes. Nil creates one
	// that opens after five consecutive failures.
	Breaker *gobreaker.CircuitBreaker[interface{}]
}

// Dispatcher is the Queue of the nats backend. Submissions are buffered in
// a priority heap and published, highest priority first, when Wait is
// called. Outcomes published by workers are matched back to in-flight keys.
type Dispatcher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	cfg        DispatcherConfig
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[interface{}]
	observer   Observer
	logger     zerolog.Logger

	heap *PriorityHeap[Job]

	mu       sync.Mutex
	inflight map[string]Job
	fatal    error
	closed   bool
	changed  chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher subscribes to the results topic and returns a ready Dispatcher.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewDispatcher(ctx context.Context, pub message.Publisher, sub message.Subscriber, cfg DispatcherConfig, observer Observer, logger zerolog.Logger) (*Dispatcher, error) {
	if cfg.JobsTopic == "" || cfg.ResultsTopic == "" {
		return nil, fmt.Errorf("%w: jobs and results topics are required", ErrDispatch)
	}
	if observer == nil {
		observer = NopObserver{}
	}

	limit := rate.Inf
	if cfg.PublishRate > 0 {
		limit = rate.Limit(cfg.PublishRate)
	}
	burst := cfg.PublishBurst
	if burst < 1 {
		burst = 1
	}

	breaker := cfg.Breaker
	if breaker == nil {
		breaker = NewBreaker(BreakerConfig{Name: "job-dispatch"}, logger)
	}

	runCtx, cancel := context.WithCancel(ctx)
	outcomes, err := sub.Subscribe(runCtx, cfg.ResultsTopic)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.ResultsTopic, err)
	}

	d := &Dispatcher{
		publisher:  pub,
		subscriber: sub,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, burst),
		breaker:    breaker,
		observer:   observer,
		logger:     logger.With().Str("component", "job_dispatcher").Logger(),
		heap:       NewPriorityHeap[Job](),
		inflight:   make(map[string]Job),
		changed:    make(chan struct{}, 1),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go d.collect(outcomes)

	return d, nil
}

// Submit implements Queue. The job is published on the next Wait.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	if !d.heap.Push(job.Key, job, job.Priority) {
		return ErrInvalidJob
	}
	metrics.UpdateQueueDepth(backendNATS, d.heap.Len())
	d.observer.JobSubmitted(job)
	return nil
}

// Wait implements Queue. It publishes every buffered job and blocks until
// an outcome arrived for each of them or a fatal outcome was received.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if err := d.flush(ctx); err != nil {
		return err
	}

	for {
		d.mu.Lock()
		remaining, fatalErr, closed := len(d.inflight), d.fatal, d.closed
		d.mu.Unlock()

		switch {
		case fatalErr != nil:
			return fatalErr
		case remaining == 0:
			return nil
		case closed:
			return ErrQueueClosed
		}

		select {
		case <-d.changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (d *Dispatcher) flush(ctx context.Context) error {
	jobs := d.heap.Drain()
	metrics.UpdateQueueDepth(backendNATS, 0)
	if len(jobs) == 0 {
		return nil
	}

	d.logger.Info().
		Int("jobs", len(jobs)).
		Str("topic", d.cfg.JobsTopic).
		Msg("Dispatching jobs")

	for i, job := range jobs {
		if err := d.limiter.Wait(ctx); err != nil {
			d.requeue(jobs[i:])
			return err
		}

		d.mu.Lock()
		d.inflight[job.Key] = job
		d.mu.Unlock()

		if err := d.publish(job); err != nil {
			d.mu.Lock()
			delete(d.inflight, job.Key)
			d.mu.Unlock()
			d.requeue(jobs[i:])
			return fmt.Errorf("%w: %s: %w", ErrDispatch, job.Key, err)
		}
		// The outcome may already have been collected; observers keep the
		// later state.
		d.observer.JobStarted(job)
	}
	return nil
}

func (d *Dispatcher) requeue(jobs []Job) {
	for _, job := range jobs {
		d.heap.Push(job.Key, job, job.Priority)
	}
	metrics.UpdateQueueDepth(backendNATS, d.heap.Len())
}

func (d *Dispatcher) publish(job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	// JetStream deduplicates redelivered publishes of the same key.
	msg.Metadata.Set(natsgo.MsgIdHdr, job.Key)
	msg.Metadata.Set("phase", job.Phase)

	_, err = d.breaker.Execute(func() (interface{}, error) {
		return nil, d.publisher.Publish(d.cfg.JobsTopic, msg)
	})
	metrics.RecordNATSPublish(d.cfg.JobsTopic, err)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCircuitBreakerRequest(d.breaker.Name(), "rejected")
	case err != nil:
		metrics.RecordCircuitBreakerRequest(d.breaker.Name(), "failure")
	default:
		metrics.RecordCircuitBreakerRequest(d.breaker.Name(), "success")
	}
	return err
}

func (d *Dispatcher) collect(outcomes <-chan *message.Message) {
	defer close(d.done)

	for msg := range outcomes {
		metrics.RecordNATSConsume(d.cfg.ResultsTopic)

		var outcome Outcome
		if err := json.Unmarshal(msg.Payload, &outcome); err != nil {
			d.logger.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable outcome")
			msg.Ack()
			continue
		}

		d.mu.Lock()
		job, ok := d.inflight[outcome.Key]
		if ok {
			delete(d.inflight, outcome.Key)
			if outcome.Fatal && d.fatal == nil {
				d.fatal = outcome.Err()
			}
		}
		d.mu.Unlock()
		msg.Ack()

		if !ok {
			// Outcomes of earlier runs sharing the results stream.
			d.logger.Debug().Str("key", outcome.Key).Msg("Ignoring outcome of unknown job")
			continue
		}

		d.observer.JobFinished(job, outcome)
		d.notify()
	}
}

func (d *Dispatcher) notify() {
	select {
	case d.changed <- struct{}{}:
	default:
	}
}

// InFlight returns the number of dispatched jobs without an outcome.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inflight)
}

// Close implements Queue. Buffered jobs are discarded; jobs already on the
// broker keep running on their workers.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	inflight := len(d.inflight)
	d.mu.Unlock()

	if discarded := d.heap.Drain(); len(discarded) > 0 {
		d.logger.Warn().Int("discarded", len(discarded)).Msg("Discarding jobs that were never dispatched")
	}
	if inflight > 0 {
		d.logger.Warn().Int("in_flight", inflight).Msg("Closing with jobs still running on workers")
	}

	d.cancel()
	d.notify()
	select {
	case <-d.done:
	case <-time.After(closeTimeout):
		d.logger.Warn().Dur("timeout", closeTimeout).Msg("Outcome subscription did not close in time")
	}
	return nil
}
