// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package orchestrator sequences the experiment phases of one evaluation run.
//
// Run creates the result folders, optionally ensures the datasets exist,
// then plans the enabled phases with a queue barrier after the baselines,
// after the folded models and after the downstream phases, since every
// later phase reads artifacts produced by the earlier ones. A fatal job
// error or planning failure ends the run.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/metrics"
	"github.com/tomtom215/impressions-evaluation/internal/phases"
)

// ErrInvalidConfig is returned by New when a collaborator is missing.
var ErrInvalidConfig = errors.New("invalid orchestrator configuration")

// Flags select the phases of a run.
type Flags struct {
	CreateDatasets                      bool
	IncludeBaselines                    bool
	IncludeFolded                       bool
	IncludeImpressionsTimeAware         bool
	IncludeImpressionsReRanking         bool
	IncludeAblationImpressionsReRanking bool
	IncludeImpressionsProfile           bool
	PrintEvaluationResults              bool
}

// Any reports whether at least one flag is set.
func (f Flags) Any() bool {
	return f.CreateDatasets || f.IncludeBaselines || f.IncludeFolded ||
		f.IncludeImpressionsTimeAware || f.IncludeImpressionsReRanking ||
		f.IncludeAblationImpressionsReRanking || f.IncludeImpressionsProfile ||
		f.PrintEvaluationResults
}

// CaseSets are the case sets of every phase family.
type CaseSets struct {
	Baselines    *experiment.CaseSet
	Heuristics   *experiment.CaseSet
	ReRanking    *experiment.CaseSet
	Ablation     *experiment.CaseSet
	UserProfiles *experiment.CaseSet
}

// Recommenders run by default in every phase family.
var (
	DefaultBaselines = []experiment.RecommenderID{
		experiment.Random, experiment.TopPopular,
		experiment.UserKNN, experiment.ItemKNN,
		experiment.MFBPR, experiment.NMF, experiment.PureSVD,
		experiment.RP3Beta,
		experiment.SLIMElasticNet, experiment.SLIMBPR,
	}
	DefaultHeuristics   = []experiment.RecommenderID{experiment.LastImpressions, experiment.FrequencyRecency, experiment.Recency}
	DefaultReRanking    = []experiment.RecommenderID{experiment.Cycling, experiment.ImpressionsDiscounting}
	DefaultAblation     = []experiment.RecommenderID{experiment.ImpressionsDiscounting}
	DefaultUserProfiles = []experiment.RecommenderID{experiment.UserWeightedUserProfile, experiment.ItemWeightedUserProfile}
)

// NewCaseSets builds every phase family over the same benchmarks and tunings.
func NewCaseSets(benchmarks []experiment.BenchmarkID, tunings []experiment.TuningID) CaseSets {
	return CaseSets{
		Baselines:    experiment.NewCaseSet(benchmarks, tunings, DefaultBaselines),
		Heuristics:   experiment.NewCaseSet(benchmarks, tunings, DefaultHeuristics),
		ReRanking:    experiment.NewCaseSet(benchmarks, tunings, DefaultReRanking),
		Ablation:     experiment.NewCaseSet(benchmarks, tunings, DefaultAblation),
		UserProfiles: experiment.NewCaseSet(benchmarks, tunings, DefaultUserProfiles),
	}
}

// Validate checks the case sets against the catalog.
func (c CaseSets) Validate(cat *experiment.Catalog) error {
	checks := []struct {
		name  string
		cases *experiment.CaseSet
		kind  experiment.Kind
	}{
		{"baselines", c.Baselines, experiment.KindBaseline},
		{"heuristics", c.Heuristics, experiment.KindHeuristic},
		{"re-ranking", c.ReRanking, experiment.KindReRanking},
		{"ablation", c.Ablation, experiment.KindReRanking},
		{"user profiles", c.UserProfiles, experiment.KindUserProfile},
	}
	for _, check := range checks {
		if check.cases == nil {
			return fmt.Errorf("%w: no %s case set", ErrInvalidConfig, check.name)
		}
		if err := cat.ValidateCases(check.cases, check.kind); err != nil {
			return fmt.Errorf("invalid %s case set: %w", check.name, err)
		}
	}
	return nil
}

// DatasetEnsurer makes sure the matrices of a benchmark exist.
type DatasetEnsurer interface {
	Ensure(ctx context.Context, b experiment.Benchmark, strategy experiment.EvaluationStrategy) error
}

// Reporter exports the results of a run.
type Reporter interface {
	Report(ctx context.Context) error
}

// Config wires an Orchestrator.
type Config struct {
	Catalog    *experiment.Catalog
	Cases      CaseSets
	Queue      jobqueue.Queue
	Planner    *phases.Planner
	Datasets   DatasetEnsurer
	Reporter   Reporter
	ResultsDir string
}

// Orchestrator runs the phases of an evaluation.
type Orchestrator struct {
	cfg    Config
	logger zerolog.Logger
}

// New validates cfg and creates an Orchestrator. Datasets and Reporter are
// only required when the matching flags are set.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(cfg Config, logger zerolog.Logger) (*Orchestrator, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, fmt.Errorf("%w: nil catalog", ErrInvalidConfig)
	case cfg.Queue == nil:
		return nil, fmt.Errorf("%w: nil queue", ErrInvalidConfig)
	case cfg.Planner == nil:
		return nil, fmt.Errorf("%w: nil planner", ErrInvalidConfig)
	case cfg.ResultsDir == "":
		return nil, fmt.Errorf("%w: empty results directory", ErrInvalidConfig)
	}
	if err := cfg.Cases.Validate(cfg.Catalog); err != nil {
		return nil, err
	}

	return &Orchestrator{
		cfg:    cfg,
		logger: logger.With().Str("component", "orchestrator").Logger(),
	}, nil
}

// Run executes the phases selected by flags and closes the queue.
func (o *Orchestrator) Run(ctx context.Context, flags Flags) error {
	defer func() {
		if cerr := o.cfg.Queue.Close(); cerr != nil {
			o.logger.Warn().Err(cerr).Msg("Failed to close job queue")
		}
	}()

	start := time.Now()
	o.logger.Info().Interface("flags", flags).Msg("Evaluation run starting")

	if err := o.createFolders(); err != nil {
		return err
	}

	if flags.CreateDatasets {
		if err := o.ensureDatasets(ctx); err != nil {
			return err
		}
	}

	if flags.IncludeBaselines {
		if err := o.plan(ctx, phases.Baselines, func() (int, error) {
			return o.cfg.Planner.PlanBaselines(ctx, o.cfg.Cases.Baselines)
		}); err != nil {
			return err
		}
	}
	if err := o.barrier(ctx, "baselines"); err != nil {
		return err
	}

	if flags.IncludeFolded {
		if err := o.plan(ctx, phases.Folded, func() (int, error) {
			return o.cfg.Planner.PlanFolded(ctx, o.cfg.Cases.Baselines)
		}); err != nil {
			return err
		}
	}
	if err := o.barrier(ctx, "folded"); err != nil {
		return err
	}

	if err := o.runDownstream(ctx, flags); err != nil {
		return err
	}
	if err := o.barrier(ctx, "downstream"); err != nil {
		return err
	}

	if flags.PrintEvaluationResults {
		if o.cfg.Reporter == nil {
			return fmt.Errorf("%w: evaluation results requested without reporter", ErrInvalidConfig)
		}
		if err := o.cfg.Reporter.Report(ctx); err != nil {
			return fmt.Errorf("failed to print evaluation results: %w", err)
		}
	}

	o.logger.Info().Dur("duration", time.Since(start)).Msg("Evaluation run finished")
	return nil
}

func (o *Orchestrator) runDownstream(ctx context.Context, flags Flags) error {
	cases := o.cfg.Cases
	steps := []struct {
		enabled bool
		phase   phases.Phase
		plan    func() (int, error)
	}{
		{flags.IncludeImpressionsTimeAware, phases.TimeAware, func() (int, error) {
			return o.cfg.Planner.PlanTimeAware(ctx, cases.Heuristics)
		}},
		{flags.IncludeImpressionsReRanking, phases.ReRanking, func() (int, error) {
			return o.cfg.Planner.PlanReRanking(ctx, cases.ReRanking, cases.Baselines)
		}},
		{flags.IncludeImpressionsProfile, phases.UserProfiles, func() (int, error) {
			return o.cfg.Planner.PlanUserProfiles(ctx, cases.UserProfiles, cases.Baselines)
		}},
		{flags.IncludeAblationImpressionsReRanking, phases.Ablation, func() (int, error) {
			return o.cfg.Planner.PlanAblation(ctx, cases.Ablation, cases.Baselines)
		}},
		{flags.IncludeAblationImpressionsReRanking, phases.SignalAblation, func() (int, error) {
			return o.cfg.Planner.PlanSignalAblation(ctx, cases.Ablation, cases.Baselines)
		}},
	}

	for _, step := range steps {
		if !step.enabled {
			continue
		}
		if err := o.plan(ctx, step.phase, step.plan); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) plan(ctx context.Context, phase phases.Phase, plan func() (int, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	n, err := plan()
	metrics.RecordPhase(string(phase), time.Since(start))
	if err != nil {
		return fmt.Errorf("failed to plan %s: %w", phase, err)
	}
	o.logger.Info().Str("phase", string(phase)).Int("jobs", n).Msg("Jobs submitted")
	return nil
}

// barrier waits for every submitted job to finish.
func (o *Orchestrator) barrier(ctx context.Context, name string) error {
	start := time.Now()
	if err := o.cfg.Queue.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for %s jobs: %w", name, err)
	}
	o.logger.Info().Str("barrier", name).Dur("waited", time.Since(start)).Msg("Jobs finished")
	return nil
}

func (o *Orchestrator) createFolders() error {
	strategies, err := o.cfg.Cases.Baselines.EvaluationStrategies(o.cfg.Catalog)
	if err != nil {
		return err
	}
	folders := phases.Folders(o.cfg.ResultsDir, o.cfg.Cases.Baselines.Benchmarks(), strategies)
	for _, dir := range folders {
		if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for experiment outputs
			return fmt.Errorf("failed to create folder %s: %w", dir, err)
		}
	}
	o.logger.Debug().Int("folders", len(folders)).Msg("Result folders ready")
	return nil
}

func (o *Orchestrator) ensureDatasets(ctx context.Context) error {
	if o.cfg.Datasets == nil {
		return fmt.Errorf("%w: dataset creation requested without dataset store", ErrInvalidConfig)
	}
	strategies, err := o.cfg.Cases.Baselines.EvaluationStrategies(o.cfg.Catalog)
	if err != nil {
		return err
	}
	for _, id := range o.cfg.Cases.Baselines.Benchmarks() {
		b, err := o.cfg.Catalog.Benchmark(id)
		if err != nil {
			return err
		}
		for _, s := range strategies {
			if err := o.cfg.Datasets.Ensure(ctx, b, s); err != nil {
				return fmt.Errorf("failed to ensure dataset %s/%s: %w", id, s, err)
			}
		}
	}
	return nil
}
