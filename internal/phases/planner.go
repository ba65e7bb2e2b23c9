// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package phases

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/resolver"
)

// Planner submits the jobs of every phase.
type Planner struct {
	catalog   *experiment.Catalog
	loader    artifacts.Loader
	submitter *jobqueue.Submitter
	logger    zerolog.Logger
}

// NewPlanner creates a planner. The loader is used to probe trained
// baselines before downstream jobs are submitted.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPlanner(catalog *experiment.Catalog, loader artifacts.Loader, submitter *jobqueue.Submitter, logger zerolog.Logger) *Planner {
	return &Planner{
		catalog:   catalog,
		loader:    loader,
		submitter: submitter,
		logger:    logger.With().Str("component", "planner").Logger(),
	}
}

func (p *Planner) lookup(c experiment.Case) (experiment.Benchmark, experiment.Recommender, experiment.TuningParameters, error) {
	bench, err := p.catalog.Benchmark(c.Benchmark)
	if err != nil {
		return experiment.Benchmark{}, experiment.Recommender{}, experiment.TuningParameters{}, err
	}
	rec, err := p.catalog.Recommender(c.Recommender)
	if err != nil {
		return experiment.Benchmark{}, experiment.Recommender{}, experiment.TuningParameters{}, err
	}
	tuning, err := p.catalog.Tuning(c.Tuning)
	if err != nil {
		return experiment.Benchmark{}, experiment.Recommender{}, experiment.TuningParameters{}, err
	}
	return bench, rec, tuning, nil
}

func (p *Planner) submit(ctx context.Context, phase Phase, parts []string, priority int64, info jobqueue.Info, args Args) error {
	_, err := p.submitter.Submit(ctx, jobqueue.Spec{
		Phase:    string(phase),
		Method:   phase.Method(),
		KeyParts: parts,
		Priority: priority,
		Info:     info,
		Args:     args,
	})
	return err
}

// PlanBaselines submits one tuning job per baseline case and similarity.
func (p *Planner) PlanBaselines(ctx context.Context, cases *experiment.CaseSet) (int, error) {
	r := resolver.New(p.catalog, p.loader, p.logger, resolver.WithPhase(string(Baselines)))

	submitted := 0
	for _, c := range cases.Cases() {
		bench, rec, _, err := p.lookup(c)
		if err != nil {
			return submitted, err
		}
		similarities, err := r.SimilarityVariants(c)
		if err != nil {
			return submitted, err
		}

		for _, sim := range similarities {
			err := p.submit(ctx, Baselines,
				[]string{string(bench.ID), rec.Name, similarityPart(sim)},
				jobqueue.Priority(bench.Priority, rec.Priority),
				jobqueue.Info{
					"recommender": rec.Name,
					"benchmark":   string(bench.ID),
					"similarity":  similarityPart(sim),
				},
				Args{Case: c, Similarity: sim},
			)
			if err != nil {
				return submitted, err
			}
			submitted++
		}
	}

	p.logger.Info().Str("phase", string(Baselines)).Int("jobs", submitted).Msg("Phase planned")
	return submitted, nil
}

// PlanFolded submits one folding job per matrix factorization baseline case.
// Other recommenders have nothing to fold and are passed over.
func (p *Planner) PlanFolded(ctx context.Context, cases *experiment.CaseSet) (int, error) {
	submitted := 0
	for _, c := range cases.Cases() {
		bench, rec, _, err := p.lookup(c)
		if err != nil {
			return submitted, err
		}
		if !rec.SupportsFolding {
			p.logger.Debug().Stringer("case", c).Msg("Recommender cannot be folded")
			continue
		}

		err = p.submit(ctx, Folded,
			[]string{string(bench.ID), rec.FoldedName()},
			jobqueue.Priority(bench.Priority, rec.Priority),
			jobqueue.Info{
				"recommender": rec.FoldedName(),
				"baseline":    rec.Name,
				"benchmark":   string(bench.ID),
			},
			Args{Case: c, TryFolded: true},
		)
		if err != nil {
			return submitted, err
		}
		submitted++
	}

	p.logger.Info().Str("phase", string(Folded)).Int("jobs", submitted).Msg("Phase planned")
	return submitted, nil
}

// PlanTimeAware submits one tuning job per time-aware heuristic case.
func (p *Planner) PlanTimeAware(ctx context.Context, cases *experiment.CaseSet) (int, error) {
	submitted := 0
	for _, c := range cases.Cases() {
		bench, rec, _, err := p.lookup(c)
		if err != nil {
			return submitted, err
		}
		if rec.Kind != experiment.KindHeuristic {
			p.logger.Warn().
				Stringer("case", c).
				Stringer("kind", rec.Kind).
				Msg("Skipping case: recommender is not a time-aware heuristic")
			continue
		}

		err = p.submit(ctx, TimeAware,
			[]string{string(bench.ID), rec.Name},
			jobqueue.Priority(bench.Priority, rec.Priority),
			jobqueue.Info{
				"recommender": rec.Name,
				"benchmark":   string(bench.ID),
			},
			Args{Case: c},
		)
		if err != nil {
			return submitted, err
		}
		submitted++
	}

	p.logger.Info().Str("phase", string(TimeAware)).Int("jobs", submitted).Msg("Phase planned")
	return submitted, nil
}

// PlanReRanking submits the re-ranking recommenders over every usable
// baseline variant.
func (p *Planner) PlanReRanking(ctx context.Context, reRanking, baselines *experiment.CaseSet) (int, error) {
	return p.planDependencies(ctx, ReRanking, reRanking, baselines)
}

// PlanUserProfiles submits the user-profile recommenders over every
// similarity-based baseline variant.
func (p *Planner) PlanUserProfiles(ctx context.Context, profiles, baselines *experiment.CaseSet) (int, error) {
	return p.planDependencies(ctx, UserProfiles, profiles, baselines, resolver.RequireSimilarityBased())
}

// PlanAblation submits the frequency-only ablation of impressions
// discounting. Other recommenders are rejected with a warning.
func (p *Planner) PlanAblation(ctx context.Context, ablation, baselines *experiment.CaseSet) (int, error) {
	return p.planDependencies(ctx, Ablation, p.ablationCases(ablation), baselines)
}

// PlanSignalAblation submits the ablation once per signal analysis type.
func (p *Planner) PlanSignalAblation(ctx context.Context, ablation, baselines *experiment.CaseSet) (int, error) {
	return p.planDependencies(ctx, SignalAblation, p.ablationCases(ablation), baselines)
}

func (p *Planner) ablationCases(cases *experiment.CaseSet) *experiment.CaseSet {
	var keep []experiment.RecommenderID
	for _, id := range cases.Recommenders() {
		if id != experiment.ImpressionsDiscounting {
			p.logger.Warn().
				Str("recommender", string(id)).
				Msgf("Skipping ablation: only %s supports the ablation study", experiment.ImpressionsDiscounting)
			continue
		}
		keep = append(keep, id)
	}
	return experiment.NewCaseSet(cases.Benchmarks(), cases.Tunings(), keep)
}

func (p *Planner) planDependencies(ctx context.Context, phase Phase, downstream, baselines *experiment.CaseSet, opts ...resolver.Option) (int, error) {
	opts = append([]resolver.Option{resolver.WithPhase(string(phase))}, opts...)
	deps, err := resolver.New(p.catalog, p.loader, p.logger, opts...).ResolveAll(ctx, downstream, baselines)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve %s dependencies: %w", phase, err)
	}

	signals := []experiment.SignalAnalysisType{""}
	if phase == SignalAblation {
		signals = experiment.SignalAnalysisTypes()
	}

	submitted := 0
	for _, dep := range deps {
		bench, down, _, err := p.lookup(dep.Downstream)
		if err != nil {
			return submitted, err
		}
		base, err := p.catalog.Recommender(dep.Baseline.Recommender)
		if err != nil {
			return submitted, err
		}

		priority := jobqueue.Priority(bench.Priority, down.Priority, base.Priority)
		if phase.UsesFoldMultiplier() {
			priority *= jobqueue.FoldMultiplier(dep.TryFolded)
		}

		baseline := dep.Baseline
		for _, signal := range signals {
			parts := []string{string(bench.ID), down.Name, base.Name, similarityPart(dep.Similarity), boolPart(dep.TryFolded)}
			info := jobqueue.Info{
				"recommender":            down.Name,
				"baseline":               base.Name,
				"similarity":             similarityPart(dep.Similarity),
				"benchmark":              string(bench.ID),
				"try_folded_recommender": boolPart(dep.TryFolded),
			}
			if signal != "" {
				parts = append(parts, string(signal))
				info["signal_analysis_type"] = string(signal)
			}

			err := p.submit(ctx, phase, parts, priority, info, Args{
				Case:       dep.Downstream,
				Baseline:   &baseline,
				Similarity: dep.Similarity,
				TryFolded:  dep.TryFolded,
				Signal:     signal,
			})
			if err != nil {
				return submitted, err
			}
			submitted++
		}
	}

	p.logger.Info().
		Str("phase", string(phase)).
		Int("dependencies", len(deps)).
		Int("jobs", submitted).
		Msg("Phase planned")
	return submitted, nil
}
