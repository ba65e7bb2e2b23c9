// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrSkipped marks an early, logged return of a job body whose
	// prerequisites are missing.
	ErrSkipped = errors.New("job skipped")

	// ErrQueueClosed is returned when submitting to a closed queue.
	ErrQueueClosed = errors.New("queue closed")

	// ErrUnknownMethod is returned when no handler is registered for a job method.
	ErrUnknownMethod = errors.New("unknown job method")

	// ErrInvalidJob is returned for jobs missing a key or method.
	ErrInvalidJob = errors.New("invalid job")
)

// fatal is implemented by errors that must halt the whole run.
type fatal interface {
	Fatal() bool
}

// IsFatal reports whether err, or any error it wraps, is fatal.
func IsFatal(err error) bool {
	var f fatal
	return errors.As(err, &f) && f.Fatal()
}

// Skip returns an error wrapping ErrSkipped with a formatted reason.
func Skip(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSkipped, fmt.Sprintf(format, args...))
}

// JobError is the error of a job that ran in another process.
type JobError struct {
	Key     string
	Message string
	fatal   bool
}

// Error implements the error interface.
func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %s", e.Key, e.Message)
}

// Fatal reports whether the remote error halts the run.
func (e *JobError) Fatal() bool {
	return e.fatal
}
