// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package phases

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/dataset"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/resolver"
	"github.com/tomtom215/impressions-evaluation/internal/search"
)

// memDatasets serves the same small matrices for every benchmark.
type memDatasets struct {
	splits *dataset.Splits
	mu     sync.Mutex
	keys   []dataset.FeatureKey
}

func newMemDatasets(t *testing.T) *memDatasets {
	t.Helper()
	m := func() *dataset.Matrix {
		mat, err := dataset.NewMatrix(3, 4, []int{0, 1, 2}, []int{1, 2, 3}, []float64{1, 1, 1})
		if err != nil {
			t.Fatalf("NewMatrix failed: %v", err)
		}
		return mat
	}
	return &memDatasets{splits: &dataset.Splits{Train: m(), Validation: m(), Test: m(), TrainValidation: m()}}
}

func (d *memDatasets) URMSplits(_ context.Context, _ experiment.BenchmarkID, _ experiment.EvaluationStrategy) (*dataset.Splits, error) {
	return d.splits, nil
}

func (d *memDatasets) ImpressionFeature(_ context.Context, key dataset.FeatureKey) (*dataset.Matrix, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys = append(d.keys, key)
	return d.splits.Train, nil
}

// memArtifacts is an in-memory artifact store.
type memArtifacts struct {
	mu     sync.Mutex
	models map[string]*artifacts.TrainedRecommender
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{models: make(map[string]*artifacts.TrainedRecommender)}
}

func (a *memArtifacts) LoadTrainedRecommender(_ context.Context, req artifacts.LoadRequest) (*artifacts.TrainedRecommender, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.models[artifacts.Name(req)], nil
}

func (a *memArtifacts) Save(_ context.Context, req artifacts.LoadRequest, tr *artifacts.TrainedRecommender) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.models[artifacts.Name(req)] = tr
	return nil
}

func (a *memArtifacts) put(rec experiment.Recommender, similarity string, folded bool) {
	name := rec.Name
	if folded {
		name = rec.FoldedName()
	}
	for _, mt := range artifacts.ModelTypes() {
		req := artifacts.LoadRequest{
			Benchmark:   experiment.MINDSmall,
			Strategy:    experiment.LeaveLastKOut,
			Recommender: rec,
			Similarity:  similarity,
			ModelType:   mt,
			TryFolded:   folded,
		}
		_ = a.Save(context.Background(), req, &artifacts.TrainedRecommender{ //nolint:errcheck // in-memory
			RecommenderName: name,
			ModelType:       mt,
			Folded:          folded,
			Similarity:      similarity,
		})
	}
}

// recordingRunner validates and records every request.
type recordingRunner struct {
	mu   sync.Mutex
	reqs []search.Request
}

func (r *recordingRunner) Search(_ context.Context, req search.Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return nil
}

func (r *recordingRunner) requests() []search.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]search.Request(nil), r.reqs...)
}

// recordingQueue keeps submitted jobs without running them.
type recordingQueue struct {
	jobs []jobqueue.Job
}

func (q *recordingQueue) Submit(_ context.Context, job jobqueue.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Wait(context.Context) error { return nil }

func (q *recordingQueue) Close() error { return nil }

func testCatalog(t *testing.T) *experiment.Catalog {
	t.Helper()
	cat, err := experiment.DefaultCatalog().WithOverrides(experiment.Overrides{KNNSimilarityTypes: []string{"cosine", "jaccard"}})
	if err != nil {
		t.Fatalf("WithOverrides failed: %v", err)
	}
	return cat
}

func mustRecommender(t *testing.T, cat *experiment.Catalog, id experiment.RecommenderID) experiment.Recommender {
	t.Helper()
	rec, err := cat.Recommender(id)
	if err != nil {
		t.Fatalf("Recommender(%s) failed: %v", id, err)
	}
	return rec
}

func cases(recs ...experiment.RecommenderID) *experiment.CaseSet {
	return experiment.NewCaseSet(
		[]experiment.BenchmarkID{experiment.MINDSmall},
		[]experiment.TuningID{experiment.LeaveLastOutBayesian50x16},
		recs,
	)
}

func newCase(id experiment.RecommenderID) experiment.Case {
	return experiment.Case{Benchmark: experiment.MINDSmall, Recommender: id, Tuning: experiment.LeaveLastOutBayesian50x16}
}

type fixture struct {
	catalog   *experiment.Catalog
	datasets  *memDatasets
	artifacts *memArtifacts
	runner    *recordingRunner
	registry  *jobqueue.Registry
	results   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog:   testCatalog(t),
		datasets:  newMemDatasets(t),
		artifacts: newMemArtifacts(),
		runner:    &recordingRunner{},
		registry:  jobqueue.NewRegistry(zerolog.Nop()),
		results:   t.TempDir(),
	}
	Register(f.registry, &Env{
		Catalog:    f.catalog,
		Datasets:   f.datasets,
		Artifacts:  f.artifacts,
		Folds:      f.artifacts,
		Runner:     f.runner,
		ResultsDir: f.results,
		Logger:     zerolog.Nop(),
	})
	return f
}

func (f *fixture) execute(t *testing.T, phase Phase, args Args) jobqueue.Outcome {
	t.Helper()
	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	job := jobqueue.Job{Key: "test|" + string(phase), Phase: string(phase), Method: phase.Method(), Args: data}
	return f.registry.Execute(context.Background(), job)
}

func TestPhase_Layout(t *testing.T) {
	methods := make(map[string]Phase)
	for _, p := range All() {
		if other, ok := methods[p.Method()]; ok {
			t.Errorf("phases %s and %s share method %s", p, other, p.Method())
		}
		methods[p.Method()] = p
	}

	tests := []struct {
		phase Phase
		want  string
	}{
		{Baselines, "baselines"},
		{Folded, "folded"},
		{TimeAware, "heuristics"},
		{ReRanking, "re_ranking"},
		{Ablation, "re_ranking"},
		{SignalAblation, "re_ranking"},
		{UserProfiles, "user_profiles"},
	}
	for _, tt := range tests {
		if got := tt.phase.ResultsDir(); got != tt.want {
			t.Errorf("%s.ResultsDir() = %q, want %q", tt.phase, got, tt.want)
		}
	}

	got := ExperimentsDir("results", ReRanking, experiment.MINDSmall, experiment.LeaveLastKOut)
	want := filepath.Join("results", "re_ranking", "MINDSmall", "LEAVE_LAST_K_OUT", "experiments")
	if got != want {
		t.Errorf("ExperimentsDir() = %q, want %q", got, want)
	}
}

func TestFolders(t *testing.T) {
	folders := Folders("results",
		[]experiment.BenchmarkID{experiment.MINDSmall, experiment.FINNNoSlates},
		[]experiment.EvaluationStrategy{experiment.LeaveLastKOut})

	seen := make(map[string]bool)
	for _, f := range folders {
		if seen[f] {
			t.Errorf("duplicate folder %s", f)
		}
		seen[f] = true
	}

	for _, want := range []string{
		filepath.Join("results", "baselines", "MINDSmall", "LEAVE_LAST_K_OUT", "models"),
		filepath.Join("results", "folded", "FINNNoSlates", "LEAVE_LAST_K_OUT", "models"),
		filepath.Join("results", "heuristics", "MINDSmall", "LEAVE_LAST_K_OUT", "experiments"),
		filepath.Join("results", "user_profiles", "FINNNoSlates", "LEAVE_LAST_K_OUT", "experiments"),
	} {
		if !seen[want] {
			t.Errorf("Folders() is missing %s", want)
		}
	}
}

func TestPlanBaselines(t *testing.T) {
	cat := testCatalog(t)
	queue := &recordingQueue{}
	planner := NewPlanner(cat, newMemArtifacts(), jobqueue.NewSubmitter(queue, zerolog.Nop()), zerolog.Nop())

	n, err := planner.PlanBaselines(context.Background(), cases(experiment.ItemKNN, experiment.TopPopular))
	if err != nil {
		t.Fatalf("PlanBaselines() error = %v", err)
	}
	if n != 3 || len(queue.jobs) != 3 {
		t.Fatalf("PlanBaselines() = %d jobs (%d queued), want 3", n, len(queue.jobs))
	}

	wantPrefixes := []string{
		"run_baselines_hyper_parameter_tuning|MINDSmall|ItemKNNCFRecommender|cosine|",
		"run_baselines_hyper_parameter_tuning|MINDSmall|ItemKNNCFRecommender|jaccard|",
		"run_baselines_hyper_parameter_tuning|MINDSmall|TopPopRecommender|none|",
	}
	wantPriorities := []int64{200, 200, 600}
	for i, job := range queue.jobs {
		if !strings.HasPrefix(job.Key, wantPrefixes[i]) {
			t.Errorf("jobs[%d].Key = %q, want prefix %q", i, job.Key, wantPrefixes[i])
		}
		if job.Priority != wantPriorities[i] {
			t.Errorf("jobs[%d].Priority = %d, want %d", i, job.Priority, wantPriorities[i])
		}
		if job.Phase != string(Baselines) {
			t.Errorf("jobs[%d].Phase = %q, want %q", i, job.Phase, Baselines)
		}
	}
	if queue.jobs[0].Key == queue.jobs[1].Key {
		t.Error("job keys are not unique")
	}
}

func TestPlanFoldedAndTimeAware(t *testing.T) {
	cat := testCatalog(t)
	queue := &recordingQueue{}
	planner := NewPlanner(cat, newMemArtifacts(), jobqueue.NewSubmitter(queue, zerolog.Nop()), zerolog.Nop())

	n, err := planner.PlanFolded(context.Background(), cases(experiment.PureSVD, experiment.ItemKNN, experiment.NMF))
	if err != nil {
		t.Fatalf("PlanFolded() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PlanFolded() = %d, want 2", n)
	}

	n, err = planner.PlanTimeAware(context.Background(), cases(experiment.Recency, experiment.Cycling))
	if err != nil {
		t.Fatalf("PlanTimeAware() error = %v", err)
	}
	if n != 1 {
		t.Errorf("PlanTimeAware() = %d, want 1", n)
	}
}

func TestPlanDownstream_Priorities(t *testing.T) {
	cat := testCatalog(t)
	pureSVD := mustRecommender(t, cat, experiment.PureSVD)

	store := newMemArtifacts()
	store.put(pureSVD, "", false)
	store.put(pureSVD, "", true)

	baselines := cases(experiment.PureSVD)

	tests := []struct {
		name           string
		plan           func(*Planner) (int, error)
		wantPriorities []int64
		wantSignals    []string
	}{
		{
			name: "re-ranking has no fold multiplier",
			plan: func(p *Planner) (int, error) {
				return p.PlanReRanking(context.Background(), cases(experiment.ImpressionsDiscounting), baselines)
			},
			wantPriorities: []int64{8000, 8000},
		},
		{
			name: "ablation prefers folded variants",
			plan: func(p *Planner) (int, error) {
				return p.PlanAblation(context.Background(), cases(experiment.ImpressionsDiscounting, experiment.Cycling), baselines)
			},
			wantPriorities: []int64{800000, 80000},
		},
		{
			name: "signal ablation repeats every signal",
			plan: func(p *Planner) (int, error) {
				return p.PlanSignalAblation(context.Background(), cases(experiment.ImpressionsDiscounting), baselines)
			},
			wantPriorities: []int64{800000, 800000, 80000, 80000},
			wantSignals: []string{
				string(experiment.SignalPositive), string(experiment.SignalNegative),
				string(experiment.SignalPositive), string(experiment.SignalNegative),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := &recordingQueue{}
			planner := NewPlanner(cat, store, jobqueue.NewSubmitter(queue, zerolog.Nop()), zerolog.Nop())

			n, err := tt.plan(planner)
			if err != nil {
				t.Fatalf("plan error = %v", err)
			}
			if n != len(tt.wantPriorities) {
				t.Fatalf("planned %d jobs, want %d", n, len(tt.wantPriorities))
			}
			for i, job := range queue.jobs {
				if job.Priority != tt.wantPriorities[i] {
					t.Errorf("jobs[%d].Priority = %d, want %d", i, job.Priority, tt.wantPriorities[i])
				}
				if tt.wantSignals != nil && job.Info["signal_analysis_type"] != tt.wantSignals[i] {
					t.Errorf("jobs[%d] signal = %q, want %q", i, job.Info["signal_analysis_type"], tt.wantSignals[i])
				}
			}
		})
	}
}

func TestPlanReRanking_FatalInconsistency(t *testing.T) {
	cat := testCatalog(t)
	rp3 := mustRecommender(t, cat, experiment.RP3Beta)

	store := newMemArtifacts()
	store.put(rp3, "", false)
	for _, tr := range store.models {
		if tr.ModelType == artifacts.ModelTrain {
			tr.RecommenderName = "Corrupted"
		}
	}

	queue := &recordingQueue{}
	planner := NewPlanner(cat, store, jobqueue.NewSubmitter(queue, zerolog.Nop()), zerolog.Nop())
	_, err := planner.PlanReRanking(context.Background(), cases(experiment.Cycling), cases(experiment.RP3Beta))
	if !jobqueue.IsFatal(err) {
		t.Fatalf("PlanReRanking() error = %v, want fatal", err)
	}
	if len(queue.jobs) != 0 {
		t.Errorf("queued %d jobs, want 0", len(queue.jobs))
	}
}

func TestRunDownstream_EndToEnd(t *testing.T) {
	f := newFixture(t)
	rp3 := mustRecommender(t, f.catalog, experiment.RP3Beta)
	f.artifacts.put(rp3, "", false)

	queue := jobqueue.NewLocalQueue(f.registry, 2, nil, zerolog.Nop())
	defer queue.Close() //nolint:errcheck // test cleanup

	planner := NewPlanner(f.catalog, f.artifacts, jobqueue.NewSubmitter(queue, zerolog.Nop()), zerolog.Nop())
	if _, err := planner.PlanReRanking(context.Background(), cases(experiment.Cycling), cases(experiment.RP3Beta)); err != nil {
		t.Fatalf("PlanReRanking() error = %v", err)
	}
	if err := queue.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	reqs := f.runner.requests()
	if len(reqs) != 1 {
		t.Fatalf("runner received %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.OutputFileNameRoot != "CyclingRecommender_RP3betaRecommender" {
		t.Errorf("OutputFileNameRoot = %q", req.OutputFileNameRoot)
	}
	wantDir := ExperimentsDir(f.results, ReRanking, experiment.MINDSmall, experiment.LeaveLastKOut)
	if req.OutputFolderPath != wantDir {
		t.Errorf("OutputFolderPath = %q, want %q", req.OutputFolderPath, wantDir)
	}
	if req.RecommenderArgs.TrainedRecommender == nil || req.RecommenderArgs.TrainedRecommender.ModelType != artifacts.ModelTrain {
		t.Errorf("RecommenderArgs.TrainedRecommender = %+v, want TRAIN model", req.RecommenderArgs.TrainedRecommender)
	}
	if req.RecommenderArgsLastTest.TrainedRecommender == nil || req.RecommenderArgsLastTest.TrainedRecommender.ModelType != artifacts.ModelTrainValidation {
		t.Errorf("RecommenderArgsLastTest.TrainedRecommender = %+v, want TRAIN_VALIDATION model", req.RecommenderArgsLastTest.TrainedRecommender)
	}
	if req.RecommenderArgs.Features == nil || req.RecommenderArgs.Features.LastSeen == nil {
		t.Error("impression features were not loaded")
	}
	if req.RecommenderArgs.Seed != 1234567890 {
		t.Errorf("Seed = %d, want 1234567890", req.RecommenderArgs.Seed)
	}
	if len(f.datasets.keys) != 8 {
		t.Errorf("loaded %d feature matrices, want 8", len(f.datasets.keys))
	}
}

func TestRunDownstream_Outcomes(t *testing.T) {
	base := newCase(experiment.RP3Beta)
	topPop := newCase(experiment.TopPopular)
	other := experiment.Case{Benchmark: experiment.FINNNoSlates, Recommender: experiment.RP3Beta, Tuning: experiment.LeaveLastOutBayesian50x16}

	tests := []struct {
		name   string
		phase  Phase
		args   Args
		setup  func(*fixture)
		status jobqueue.Status
		fatal  bool
	}{
		{
			name:   "missing baseline is skipped",
			phase:  ReRanking,
			args:   Args{Case: newCase(experiment.Cycling), Baseline: &base},
			status: jobqueue.StatusSkipped,
		},
		{
			name:   "incompatible cases are skipped",
			phase:  ReRanking,
			args:   Args{Case: newCase(experiment.Cycling), Baseline: &other},
			status: jobqueue.StatusSkipped,
		},
		{
			name:   "ablation rejects other recommenders",
			phase:  Ablation,
			args:   Args{Case: newCase(experiment.Cycling), Baseline: &base},
			status: jobqueue.StatusSkipped,
		},
		{
			name:   "user profiles require a similarity",
			phase:  UserProfiles,
			args:   Args{Case: newCase(experiment.ItemWeightedUserProfile), Baseline: &topPop},
			status: jobqueue.StatusSkipped,
		},
		{
			name:  "folded request over plain artifact is skipped",
			phase: ReRanking,
			args:  Args{Case: newCase(experiment.Cycling), Baseline: &base, TryFolded: true},
			setup: func(f *fixture) {
				rp3 := mustRecommender(t, f.catalog, experiment.RP3Beta)
				f.artifacts.put(rp3, "", true)
				for _, tr := range f.artifacts.models {
					tr.Folded = false
				}
			},
			status: jobqueue.StatusSkipped,
		},
		{
			name:  "mismatched names are fatal",
			phase: ReRanking,
			args:  Args{Case: newCase(experiment.Cycling), Baseline: &base},
			setup: func(f *fixture) {
				rp3 := mustRecommender(t, f.catalog, experiment.RP3Beta)
				f.artifacts.put(rp3, "", false)
				for _, tr := range f.artifacts.models {
					if tr.ModelType == artifacts.ModelTrainValidation {
						tr.RecommenderName = "Corrupted"
					}
				}
			},
			status: jobqueue.StatusFailed,
			fatal:  true,
		},
		{
			name:   "missing baseline argument fails",
			phase:  ReRanking,
			args:   Args{Case: newCase(experiment.Cycling)},
			status: jobqueue.StatusFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.setup != nil {
				tt.setup(f)
			}
			outcome := f.execute(t, tt.phase, tt.args)
			if outcome.Status != tt.status {
				t.Errorf("Status = %s, want %s (error %q)", outcome.Status, tt.status, outcome.Error)
			}
			if outcome.Fatal != tt.fatal {
				t.Errorf("Fatal = %v, want %v", outcome.Fatal, tt.fatal)
			}
			if tt.fatal {
				var ce *resolver.ConsistencyError
				if !errors.As(outcome.Err(), &ce) {
					t.Errorf("Err() = %v, want *resolver.ConsistencyError", outcome.Err())
				}
			}
			if n := len(f.runner.requests()); n != 0 {
				t.Errorf("runner received %d requests, want 0", n)
			}
		})
	}
}

func TestRunSignalAblation(t *testing.T) {
	f := newFixture(t)
	pureSVD := mustRecommender(t, f.catalog, experiment.PureSVD)
	f.artifacts.put(pureSVD, "", true)
	base := newCase(experiment.PureSVD)

	outcome := f.execute(t, SignalAblation, Args{
		Case:      newCase(experiment.ImpressionsDiscounting),
		Baseline:  &base,
		TryFolded: true,
		Signal:    experiment.SignalNegative,
	})
	if outcome.Status != jobqueue.StatusSucceeded {
		t.Fatalf("Status = %s (%s), want succeeded", outcome.Status, outcome.Error)
	}

	req := f.runner.requests()[0]
	want := fmt.Sprintf("%s_ABLATION_ONLY_UIM_FREQUENCY_ImpressionsDiscountingRecommender_%s", experiment.SignalNegative, pureSVD.FoldedName())
	if req.OutputFileNameRoot != want {
		t.Errorf("OutputFileNameRoot = %q, want %q", req.OutputFileNameRoot, want)
	}
	sign := req.SearchSpace["sign_uim_frequency"]
	if len(sign.Categories) != 1 || sign.Categories[0] != "-1" {
		t.Errorf("sign_uim_frequency = %+v, want fixed -1", sign)
	}
	if !strings.Contains(req.OutputFolderPath, filepath.Join("re_ranking", "MINDSmall")) {
		t.Errorf("OutputFolderPath = %q, want the re-ranking folder", req.OutputFolderPath)
	}
}

func TestRunBaseline_Similarity(t *testing.T) {
	f := newFixture(t)
	outcome := f.execute(t, Baselines, Args{Case: newCase(experiment.ItemKNN), Similarity: "jaccard"})
	if outcome.Status != jobqueue.StatusSucceeded {
		t.Fatalf("Status = %s (%s), want succeeded", outcome.Status, outcome.Error)
	}

	req := f.runner.requests()[0]
	if req.OutputFileNameRoot != "ItemKNNCFRecommender_jaccard" {
		t.Errorf("OutputFileNameRoot = %q", req.OutputFileNameRoot)
	}
	if req.RecommenderArgs.Constructor["similarity"] != "jaccard" {
		t.Errorf("Constructor = %v, want similarity jaccard", req.RecommenderArgs.Constructor)
	}
	if req.RecommenderArgs.Features != nil {
		t.Error("baselines must not load impression features")
	}
	if req.Strategy != search.StrategyBayesian {
		t.Errorf("Strategy = %s, want %s", req.Strategy, search.StrategyBayesian)
	}
}

func TestRunFolded(t *testing.T) {
	f := newFixture(t)
	pureSVD := mustRecommender(t, f.catalog, experiment.PureSVD)
	f.artifacts.put(pureSVD, "", false)

	outcome := f.execute(t, Folded, Args{Case: newCase(experiment.PureSVD), TryFolded: true})
	if outcome.Status != jobqueue.StatusSucceeded {
		t.Fatalf("Status = %s (%s), want succeeded", outcome.Status, outcome.Error)
	}

	for _, mt := range artifacts.ModelTypes() {
		tr, _ := f.artifacts.LoadTrainedRecommender(context.Background(), artifacts.LoadRequest{ //nolint:errcheck // in-memory
			Benchmark: experiment.MINDSmall, Strategy: experiment.LeaveLastKOut,
			Recommender: pureSVD, ModelType: mt, TryFolded: true,
		})
		if tr == nil || !tr.Folded || tr.RecommenderName != pureSVD.FoldedName() {
			t.Errorf("folded %s artifact = %+v", mt, tr)
		}
	}

	req := f.runner.requests()[0]
	if req.Strategy != search.StrategySingleCase {
		t.Errorf("Strategy = %s, want %s", req.Strategy, search.StrategySingleCase)
	}
	if req.OutputFileNameRoot != "FoldedPureSVDRecommender" {
		t.Errorf("OutputFileNameRoot = %q", req.OutputFileNameRoot)
	}
	if req.RecommenderName != pureSVD.FoldedName() {
		t.Errorf("RecommenderName = %q, want %q", req.RecommenderName, pureSVD.FoldedName())
	}
}

func TestRunFolded_WithoutBaselineIsSkipped(t *testing.T) {
	f := newFixture(t)
	outcome := f.execute(t, Folded, Args{Case: newCase(experiment.NMF), TryFolded: true})
	if outcome.Status != jobqueue.StatusSkipped {
		t.Errorf("Status = %s, want skipped", outcome.Status)
	}
}

func TestRunTimeAware(t *testing.T) {
	f := newFixture(t)

	outcome := f.execute(t, TimeAware, Args{Case: newCase(experiment.FrequencyRecency)})
	if outcome.Status != jobqueue.StatusSucceeded {
		t.Fatalf("Status = %s (%s), want succeeded", outcome.Status, outcome.Error)
	}
	req := f.runner.requests()[0]
	if req.RecommenderArgsLastTest.Features == nil {
		t.Error("time-aware heuristics need impression features")
	}
	if req.RecommenderArgs.TrainedRecommender != nil {
		t.Error("time-aware heuristics do not wrap a baseline")
	}

	outcome = f.execute(t, TimeAware, Args{Case: newCase(experiment.ItemKNN)})
	if outcome.Status != jobqueue.StatusSkipped {
		t.Errorf("Status = %s, want skipped for a baseline", outcome.Status)
	}
}
