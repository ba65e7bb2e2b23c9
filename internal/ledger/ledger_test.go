// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(Config{InMemory: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		l.Close() //nolint:errcheck // test cleanup
	})

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return l
}

func job(key, phase string) jobqueue.Job {
	return jobqueue.Job{
		Key:      key,
		Phase:    phase,
		Method:   "run_" + phase,
		Priority: 10,
		Info:     jobqueue.Info{"benchmark": "ContentWise"},
	}
}

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := Open(Config{}, zerolog.Nop()); err == nil {
		t.Error("Open() without path should fail")
	}
}

func TestLedger_Lifecycle(t *testing.T) {
	l := newTestLedger(t)
	j := job("a|1", "baselines")

	l.JobSubmitted(j)
	r, err := l.Get("a|1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Status != jobqueue.StatusSubmitted {
		t.Errorf("Status = %v, want %v", r.Status, jobqueue.StatusSubmitted)
	}
	if r.Method != "run_baselines" || r.Priority != 10 || r.Info["benchmark"] != "ContentWise" {
		t.Errorf("record = %+v, job fields not copied", r)
	}

	l.JobStarted(j)
	r, _ = l.Get("a|1")
	if r.Status != jobqueue.StatusRunning {
		t.Errorf("Status = %v, want %v", r.Status, jobqueue.StatusRunning)
	}

	started := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	l.JobFinished(j, jobqueue.Outcome{
		Key:        j.Key,
		Phase:      j.Phase,
		Status:     jobqueue.StatusFailed,
		Error:      "boom",
		Worker:     "w1",
		StartedAt:  started,
		FinishedAt: started.Add(90 * time.Second),
	})
	r, _ = l.Get("a|1")
	if r.Status != jobqueue.StatusFailed || r.Error != "boom" || r.Worker != "w1" {
		t.Errorf("record = %+v, want failed by w1 with error", r)
	}
	if got := r.Duration(); got != 90*time.Second {
		t.Errorf("Duration() = %v, want %v", got, 90*time.Second)
	}
	if r.SubmittedAt.IsZero() {
		t.Error("SubmittedAt lost on later transitions")
	}
}

func TestLedger_FinishedWithoutSubmit(t *testing.T) {
	l := newTestLedger(t)
	j := job("remote", "re_ranking")

	l.JobFinished(j, jobqueue.Outcome{Key: j.Key, Status: jobqueue.StatusSucceeded})

	r, err := l.Get("remote")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Status != jobqueue.StatusSucceeded || r.Phase != "re_ranking" {
		t.Errorf("record = %+v", r)
	}
}

func TestLedger_GetMissing(t *testing.T) {
	l := newTestLedger(t)
	if _, err := l.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestLedger_ListAndSummary(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	jobs := []jobqueue.Job{
		job("b1", "baselines"),
		job("b2", "baselines"),
		job("r1", "re_ranking"),
	}
	for _, j := range jobs {
		l.JobSubmitted(j)
	}
	l.JobFinished(jobs[0], jobqueue.Outcome{Key: "b1", Status: jobqueue.StatusSucceeded})
	l.JobFinished(jobs[2], jobqueue.Outcome{Key: "r1", Status: jobqueue.StatusSkipped})

	all, err := l.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(List) = %d, want 3", len(all))
	}
	for i, want := range []string{"b1", "b2", "r1"} {
		if all[i].Key != want {
			t.Errorf("List()[%d] = %s, want %s", i, all[i].Key, want)
		}
	}

	pending, err := l.List(ctx, jobqueue.StatusSubmitted)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Key != "b2" {
		t.Errorf("List(submitted) = %+v, want only b2", pending)
	}

	summary, err := l.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("len(Summary) = %d, want 2", len(summary))
	}
	tests := []struct {
		phase  string
		total  int
		status jobqueue.Status
		count  int
	}{
		{"baselines", 2, jobqueue.StatusSucceeded, 1},
		{"re_ranking", 1, jobqueue.StatusSkipped, 1},
	}
	for i, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			s := summary[i]
			if s.Phase != tt.phase {
				t.Errorf("Phase = %s, want %s", s.Phase, tt.phase)
			}
			if s.Total != tt.total {
				t.Errorf("Total = %d, want %d", s.Total, tt.total)
			}
			if s.Counts[tt.status] != tt.count {
				t.Errorf("Counts[%s] = %d, want %d", tt.status, s.Counts[tt.status], tt.count)
			}
		})
	}
}

func TestLedger_ListCancelled(t *testing.T) {
	l := newTestLedger(t)
	l.JobSubmitted(job("x", "baselines"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.List(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestLedger_Persists(t *testing.T) {
	dir := t.TempDir()
	l, err := Open(Config{Path: dir, SyncWrites: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.JobSubmitted(job("k", "folded"))
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l, err = Open(Config{Path: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close() //nolint:errcheck // test cleanup

	r, err := l.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Phase != "folded" {
		t.Errorf("Phase = %s, want folded", r.Phase)
	}
}

func TestLedger_LateSubmitKeepsProgress(t *testing.T) {
	tests := []struct {
		name    string
		advance func(l *Ledger, j jobqueue.Job)
		want    jobqueue.Status
	}{
		{
			name:    "started",
			advance: func(l *Ledger, j jobqueue.Job) { l.JobStarted(j) },
			want:    jobqueue.StatusRunning,
		},
		{
			name: "finished",
			advance: func(l *Ledger, j jobqueue.Job) {
				l.JobStarted(j)
				l.JobFinished(j, jobqueue.Outcome{Key: j.Key, Status: jobqueue.StatusSucceeded})
			},
			want: jobqueue.StatusSucceeded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLedger(t)
			j := job("late", "baselines")

			tt.advance(l, j)
			l.JobSubmitted(j)

			r, err := l.Get("late")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if r.Status != tt.want {
				t.Errorf("Status = %v, want %v", r.Status, tt.want)
			}
			if r.SubmittedAt.IsZero() {
				t.Error("SubmittedAt not recorded")
			}
		})
	}
}

func TestLedger_StartAfterFinishKeepsOutcome(t *testing.T) {
	l := newTestLedger(t)
	j := job("k", "re_ranking")

	l.JobSubmitted(j)
	l.JobFinished(j, jobqueue.Outcome{Key: j.Key, Status: jobqueue.StatusSkipped, Error: "baseline absent"})
	l.JobStarted(j)

	r, _ := l.Get("k")
	if r.Status != jobqueue.StatusSkipped || r.Error != "baseline absent" {
		t.Errorf("record = %+v, want skipped outcome kept", r)
	}
}

func TestLedger_ResubmitInNewRunResets(t *testing.T) {
	dir := t.TempDir()
	j := job("k", "folded")

	l, err := Open(Config{Path: dir, SyncWrites: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	l.JobSubmitted(j)
	l.JobFinished(j, jobqueue.Outcome{Key: j.Key, Status: jobqueue.StatusFailed, Error: "boom", Worker: "w1"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	l, err = Open(Config{Path: dir}, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l.Close() //nolint:errcheck // test cleanup

	l.JobSubmitted(j)
	r, err := l.Get("k")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Status != jobqueue.StatusSubmitted || r.Error != "" || r.Worker != "" {
		t.Errorf("record = %+v, want a fresh submitted record", r)
	}
}

func TestLedger_ConcurrentUpdates(t *testing.T) {
	l := newTestLedger(t)
	const writers, perWriter = 4, 10

	var wg sync.WaitGroup
	errs := make(chan error, writers*perWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				errs <- l.update("shared", func(r *Record) { r.Priority++ })
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("update() error = %v", err)
		}
	}
	r, err := l.Get("shared")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if r.Priority != writers*perWriter {
		t.Errorf("Priority = %d, want %d", r.Priority, writers*perWriter)
	}
}
