// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

// KeySeparator joins the parts of a job key.
const KeySeparator = "|"

// Fold multipliers applied to the priority of downstream jobs. Folded
// variants are scheduled first.
const (
	FoldedMultiplier    = 100
	NotFoldedMultiplier = 10
)

// Queue is the submit / wait / close interface of a job queue.
type Queue interface {
	// Submit enqueues a job without waiting for it to run.
	Submit(ctx context.Context, job Job) error

	// Wait blocks until every submitted job finished. It returns the first
	// fatal job error, or the context error when ctx ends first.
	Wait(ctx context.Context) error

	// Close releases the queue. Jobs still waiting are discarded.
	Close() error
}

// FoldMultiplier returns the priority multiplier of a fold variant.
func FoldMultiplier(tryFolded bool) int64 {
	if tryFolded {
		return FoldedMultiplier
	}
	return NotFoldedMultiplier
}

// Priority multiplies priority weights.
func Priority(weights ...int) int64 {
	p := int64(1)
	for _, w := range weights {
		p *= int64(w)
	}
	return p
}

// Spec describes a job before it gets its key.
type Spec struct {
	Phase    string
	Method   string
	KeyParts []string
	Priority int64
	Info     Info
	Args     interface{}
}

// Submitter turns specs into jobs and enqueues them.
type Submitter struct {
	queue   Queue
	newUUID func() string
	logger  zerolog.Logger
}

// NewSubmitter creates a submitter for a queue.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSubmitter(queue Queue, logger zerolog.Logger) *Submitter {
	return &Submitter{
		queue:   queue,
		newUUID: uuid.NewString,
		logger:  logger.With().Str("component", "job_submitter").Logger(),
	}
}

// Key builds "<method>|<parts...>|<uuid>". The random suffix keeps every
// submission unique, so resubmitting the same case never collides.
func (s *Submitter) Key(method string, parts ...string) string {
	all := make([]string, 0, len(parts)+2)
	all = append(all, method)
	all = append(all, parts...)
	all = append(all, s.newUUID())
	return strings.Join(all, KeySeparator)
}

// Submit builds the job of spec and enqueues it.
func (s *Submitter) Submit(ctx context.Context, spec Spec) (Job, error) {
	args, err := json.Marshal(spec.Args)
	if err != nil {
		return Job{}, fmt.Errorf("failed to encode arguments of %s: %w", spec.Method, err)
	}

	job := Job{
		Key:      s.Key(spec.Method, spec.KeyParts...),
		Priority: spec.Priority,
		Phase:    spec.Phase,
		Method:   spec.Method,
		Info:     spec.Info,
		Args:     args,
	}
	if err := job.Validate(); err != nil {
		return Job{}, err
	}

	if err := s.queue.Submit(ctx, job); err != nil {
		return Job{}, fmt.Errorf("failed to submit %s: %w", job.Key, err)
	}
	metrics.RecordJobSubmitted(job.Phase)

	s.logger.Debug().
		Str("key", job.Key).
		Str("phase", job.Phase).
		Int64("priority", job.Priority).
		Interface("info", job.Info).
		Msg("Job submitted")

	return job, nil
}
