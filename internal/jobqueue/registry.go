// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

// Handler runs the body of a job.
type Handler func(ctx context.Context, job Job) error

// Registry maps job methods to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   zerolog.Logger
	now      func() time.Time
}

// NewRegistry creates an empty registry.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger.With().Str("component", "job_registry").Logger(),
		now:      time.Now,
	}
}

// Register adds a handler. Registering a method twice replaces the handler.
func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// Lookup returns the handler of a method.
func (r *Registry) Lookup(method string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[method]
	return h, ok
}

// Methods returns the registered methods in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}

// Execute runs the handler of job and classifies the result. Panics are
// recovered and reported as failures.
func (r *Registry) Execute(ctx context.Context, job Job) Outcome {
	outcome := Outcome{Key: job.Key, Phase: job.Phase, StartedAt: r.now()}

	metrics.TrackRunningJob(true)
	err := r.run(ctx, job)
	metrics.TrackRunningJob(false)

	outcome.FinishedAt = r.now()
	outcome.Status = Classify(err)
	outcome.Fatal = IsFatal(err)
	outcome.err = err
	if err != nil {
		outcome.Error = err.Error()
	}
	metrics.RecordJobFinished(job.Phase, string(outcome.Status), outcome.Duration())

	var event *zerolog.Event
	switch {
	case outcome.Fatal:
		event = r.logger.Error().Err(err).Bool("fatal", true)
	case outcome.Status == StatusFailed:
		event = r.logger.Error().Err(err)
	case outcome.Status == StatusSkipped:
		event = r.logger.Warn().Str("reason", err.Error())
	default:
		event = r.logger.Info()
	}
	event.
		Str("key", job.Key).
		Str("phase", job.Phase).
		Str("status", string(outcome.Status)).
		Dur("duration", outcome.Duration()).
		Msg("Job finished")

	return outcome
}

func (r *Registry) run(ctx context.Context, job Job) (err error) {
	h, ok := r.Lookup(job.Method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, job.Method)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("key", job.Key).
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Msg("Job handler panicked")
			err = fmt.Errorf("handler panicked: %v", rec)
		}
	}()

	return h(ctx, job)
}
