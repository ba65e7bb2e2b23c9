// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Info is the human-readable metadata of a job: recommender, baseline,
// similarity, benchmark and fold flag.
type Info map[string]string

// Job is a unit of work handed to a queue.
type Job struct {
	Key      string          `json:"key"`
	Priority int64           `json:"priority"`
	Phase    string          `json:"phase"`
	Method   string          `json:"method"`
	Info     Info            `json:"info,omitempty"`
	Args     json.RawMessage `json:"args,omitempty"`
}

// Validate checks that the job can be routed.
func (j *Job) Validate() error {
	if j.Key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidJob)
	}
	if j.Method == "" {
		return fmt.Errorf("%w: %s has no method", ErrInvalidJob, j.Key)
	}
	return nil
}

// DecodeArgs unmarshals the job arguments into v.
func (j *Job) DecodeArgs(v interface{}) error {
	if len(j.Args) == 0 {
		return fmt.Errorf("%w: %s has no arguments", ErrInvalidJob, j.Key)
	}
	if err := json.Unmarshal(j.Args, v); err != nil {
		return fmt.Errorf("failed to decode arguments of %s: %w", j.Key, err)
	}
	return nil
}

// Status is the lifecycle state of a job.
type Status string

// Job statuses.
const (
	StatusSubmitted Status = "submitted"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusSkipped || s == StatusFailed
}

// Classify maps a handler error to a terminal status.
func Classify(err error) Status {
	switch {
	case err == nil:
		return StatusSucceeded
	case errors.Is(err, ErrSkipped):
		return StatusSkipped
	default:
		return StatusFailed
	}
}

// Outcome is the result of one job execution.
type Outcome struct {
	Key        string    `json:"key"`
	Phase      string    `json:"phase"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Fatal      bool      `json:"fatal,omitempty"`
	Worker     string    `json:"worker,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	err error
}

// Duration returns how long the job body ran.
func (o *Outcome) Duration() time.Duration {
	return o.FinishedAt.Sub(o.StartedAt)
}

// Err returns the handler error. For outcomes decoded from another process
// it is a *JobError carrying the message and the fatal flag.
func (o *Outcome) Err() error {
	if o.err != nil {
		return o.err
	}
	if o.Status == StatusSucceeded || o.Error == "" {
		return nil
	}
	return &JobError{Key: o.Key, Message: o.Error, fatal: o.Fatal}
}

// Observer is notified about job lifecycle events. Implementations must be
// safe for concurrent use.
type Observer interface {
	JobSubmitted(job Job)
	JobStarted(job Job)
	JobFinished(job Job, outcome Outcome)
}

// Observers fans events out to several observers.
type Observers []Observer

// JobSubmitted implements Observer.
func (o Observers) JobSubmitted(job Job) {
	for _, obs := range o {
		obs.JobSubmitted(job)
	}
}

// JobStarted implements Observer.
func (o Observers) JobStarted(job Job) {
	for _, obs := range o {
		obs.JobStarted(job)
	}
}

// JobFinished implements Observer.
func (o Observers) JobFinished(job Job, outcome Outcome) {
	for _, obs := range o {
		obs.JobFinished(job, outcome)
	}
}

// NopObserver ignores every event.
type NopObserver struct{}

// JobSubmitted implements Observer.
func (NopObserver) JobSubmitted(Job) {}

// JobStarted implements Observer.
func (NopObserver) JobStarted(Job) {}

// JobFinished implements Observer.
func (NopObserver) JobFinished(Job, Outcome) {}
