// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package ledger keeps a durable record of every job of an evaluation run.
//
// The Ledger implements jobqueue.Observer: queues report submissions,
// starts and outcomes, and the ledger stores one Record per job key in
// BadgerDB. The report and the status API read it back.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
)

const (
	prefixJob = "job:"

	// updateAttempts bounds retries of a transaction that lost a write conflict.
	updateAttempts = 10
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("job record not found")

// Record is the stored state of one job.
type Record struct {
	Key      string            `json:"key"`
	Method   string            `json:"method"`
	Phase    string            `json:"phase"`
	Priority int64             `json:"priority"`
	Info     map[string]string `json:"info,omitempty"`

	Status jobqueue.Status `json:"status"`
	Error  string          `json:"error,omitempty"`
	Fatal  bool            `json:"fatal,omitempty"`
	Worker string          `json:"worker,omitempty"`
	Run    string          `json:"run,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the job ran, zero until it finished.
func (r *Record) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Config configures the ledger database.
type Config struct {
	Path        string
	InMemory    bool
	SyncWrites  bool
	Compression bool
}

// Ledger is a BadgerDB-backed job ledger.
type Ledger struct {
	db     *badger.DB
	logger zerolog.Logger
	now    func() time.Time

	// run identifies this Open; records finished under another run are stale.
	run string
}

// Open opens (or creates) the ledger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Open(cfg Config, logger zerolog.Logger) (*Ledger, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("ledger path is required unless in memory")
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	l := &Ledger{
		db:     db,
		logger: logger.With().Str("component", "ledger").Logger(),
		now:    time.Now,
		run:    uuid.NewString(),
	}
	l.logger.Info().
		Str("path", cfg.Path).
		Str("run", l.run).
		Bool("in_memory", cfg.InMemory).
		Msg("Job ledger opened")
	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// update applies fn to the record of key, creating it when absent.
// Transactions that lose a write conflict are retried.
func (l *Ledger) update(key string, fn func(r *Record)) error {
	var err error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		err = l.updateOnce(key, fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (l *Ledger) updateOnce(key string, fn func(r *Record)) error {
	return l.db.Update(func(txn *badger.Txn) error {
		var r Record
		item, err := txn.Get([]byte(prefixJob + key))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			r.Key = key
		case err != nil:
			return fmt.Errorf("get record: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
		}

		fn(&r)

		data, err := json.Marshal(&r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		return txn.Set([]byte(prefixJob+key), data)
	})
}

func fromJob(r *Record, job jobqueue.Job) {
	r.Method = job.Method
	r.Phase = job.Phase
	r.Priority = job.Priority
	if len(job.Info) > 0 {
		r.Info = job.Info
	}
}

// advanced reports whether r already moved past submission in this run.
func (l *Ledger) advanced(r *Record) bool {
	return r.Run == l.run && (r.Status == jobqueue.StatusRunning || r.Status.Terminal())
}

// JobSubmitted implements jobqueue.Observer. A late submission never
// rewinds a job that already started or finished in this run.
func (l *Ledger) JobSubmitted(job jobqueue.Job) {
	now := l.now().UTC()
	err := l.update(job.Key, func(r *Record) {
		fromJob(r, job)
		r.SubmittedAt = now
		if l.advanced(r) {
			return
		}
		r.Status = jobqueue.StatusSubmitted
		r.Error = ""
		r.Fatal = false
		r.Worker = ""
		r.StartedAt = time.Time{}
		r.FinishedAt = time.Time{}
		r.Run = l.run
	})
	l.logError(err, job.Key, jobqueue.StatusSubmitted)
}

// JobStarted implements jobqueue.Observer.
func (l *Ledger) JobStarted(job jobqueue.Job) {
	now := l.now().UTC()
	err := l.update(job.Key, func(r *Record) {
		fromJob(r, job)
		if r.Run == l.run && r.Status.Terminal() {
			return
		}
		r.Status = jobqueue.StatusRunning
		r.StartedAt = now
		r.Run = l.run
	})
	l.logError(err, job.Key, jobqueue.StatusRunning)
}

// JobFinished implements jobqueue.Observer.
func (l *Ledger) JobFinished(job jobqueue.Job, outcome jobqueue.Outcome) {
	err := l.update(job.Key, func(r *Record) {
		fromJob(r, job)
		r.Status = outcome.Status
		r.Error = outcome.Error
		r.Fatal = outcome.Fatal
		r.Worker = outcome.Worker
		r.StartedAt = outcome.StartedAt.UTC()
		r.FinishedAt = outcome.FinishedAt.UTC()
		r.Run = l.run
	})
	l.logError(err, job.Key, outcome.Status)
}

func (l *Ledger) logError(err error, key string, status jobqueue.Status) {
	if err == nil {
		return
	}
	l.logger.Error().
		Err(err).
		Str("key", key).
		Str("status", string(status)).
		Msg("Failed to record job transition")
}

// Get returns the record of a job.
func (l *Ledger) Get(key string) (*Record, error) {
	var r Record
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixJob + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get record: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns the records with the given status, or every record when
// status is empty, ordered by submission time then key.
func (l *Ledger) List(ctx context.Context, status jobqueue.Status) ([]Record, error) {
	var records []Record
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixJob)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return fmt.Errorf("decode record: %w", err)
			}
			if status == "" || r.Status == status {
				records = append(records, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].SubmittedAt.Equal(records[j].SubmittedAt) {
			return records[i].SubmittedAt.Before(records[j].SubmittedAt)
		}
		return records[i].Key < records[j].Key
	})
	return records, nil
}

// PhaseSummary counts the jobs of one phase by status.
type PhaseSummary struct {
	Phase  string                  `json:"phase"`
	Counts map[jobqueue.Status]int `json:"counts"`
	Total  int                     `json:"total"`
}

// Summary returns the job counts of every phase, sorted by phase name.
func (l *Ledger) Summary(ctx context.Context) ([]PhaseSummary, error) {
	records, err := l.List(ctx, "")
	if err != nil {
		return nil, err
	}

	byPhase := make(map[string]*PhaseSummary)
	for i := range records {
		r := &records[i]
		s, ok := byPhase[r.Phase]
		if !ok {
			s = &PhaseSummary{Phase: r.Phase, Counts: make(map[jobqueue.Status]int)}
			byPhase[r.Phase] = s
		}
		s.Counts[r.Status]++
		s.Total++
	}

	out := make([]PhaseSummary, 0, len(byPhase))
	for _, s := range byPhase {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Phase < out[j].Phase })
	return out, nil
}
