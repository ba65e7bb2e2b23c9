// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

const backendLocal = "local"

// LocalQueue runs jobs on goroutines of this process, highest priority first.
//
// Handlers receive a context that is never canceled: a started job runs to
// completion. Close discards waiting jobs and waits for running ones.
type LocalQueue struct {
	registry *Registry
	observer Observer
	logger   zerolog.Logger

	heap *PriorityHeap[Job]

	mu      sync.Mutex
	cond    *sync.Cond
	pending int // submitted and not yet finished
	fatal   error
	closed  bool

	wg sync.WaitGroup
}

// NewLocalQueue starts a queue with the given number of workers.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLocalQueue(registry *Registry, workers int, observer Observer, logger zerolog.Logger) *LocalQueue {
	if workers < 1 {
		workers = 1
	}
	if observer == nil {
		observer = NopObserver{}
	}

	q := &LocalQueue{
		registry: registry,
		observer: observer,
		logger:   logger.With().Str("component", "local_queue").Logger(),
		heap:     NewPriorityHeap[Job](),
	}
	q.cond = sync.NewCond(&q.mu)

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.work()
	}

	q.logger.Info().Int("workers", workers).Msg("Local job queue started")
	return q
}

// Submit implements Queue.
func (q *LocalQueue) Submit(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.heap.Contains(job.Key) {
		q.mu.Unlock()
		return ErrInvalidJob
	}
	// Observed before any worker can pop the job.
	q.observer.JobSubmitted(job)
	q.heap.Push(job.Key, job, job.Priority)
	q.pending++
	depth := q.heap.Len()
	q.cond.Broadcast()
	q.mu.Unlock()

	metrics.UpdateQueueDepth(backendLocal, depth)
	return nil
}

// Wait implements Queue. It returns as soon as a fatal outcome is recorded.
func (q *LocalQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.mu.Lock()
		for q.pending > 0 && q.fatal == nil && !q.closed {
			q.cond.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fatal != nil {
		return q.fatal
	}
	if q.closed && q.pending > 0 {
		return ErrQueueClosed
	}
	return nil
}

// Close implements Queue.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	discarded := q.heap.Drain()
	q.pending -= len(discarded)
	q.cond.Broadcast()
	q.mu.Unlock()

	if len(discarded) > 0 {
		q.logger.Warn().Int("discarded", len(discarded)).Msg("Discarding jobs that never started")
	}
	metrics.UpdateQueueDepth(backendLocal, 0)

	q.wg.Wait()
	q.logger.Info().Msg("Local job queue stopped")
	return nil
}

// Pending returns the number of submitted jobs that have not finished.
func (q *LocalQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

func (q *LocalQueue) next() (Job, int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if job, ok := q.heap.Pop(); ok {
			return job, q.heap.Len(), true
		}
		if q.closed {
			return Job{}, 0, false
		}
		q.cond.Wait()
	}
}

func (q *LocalQueue) work() {
	defer q.wg.Done()

	for {
		job, depth, ok := q.next()
		if !ok {
			return
		}
		metrics.UpdateQueueDepth(backendLocal, depth)

		q.observer.JobStarted(job)
		outcome := q.registry.Execute(context.Background(), job)
		q.observer.JobFinished(job, outcome)

		q.mu.Lock()
		q.pending--
		if outcome.Fatal && q.fatal == nil {
			q.fatal = outcome.Err()
		}
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}
