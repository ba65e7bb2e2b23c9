// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

// Variant is one expansion of a baseline case.
type Variant struct {
	Similarity string
	TryFolded  bool
}

// Dependency is a downstream case bound to a usable baseline variant.
type Dependency struct {
	Downstream experiment.Case
	Baseline   experiment.Case
	Variant
}

// options configure a Resolver.
type options struct {
	phase                  string
	foldExpansion          bool
	requireSimilarityBased bool
}

// Option configures a Resolver.
type Option func(*options)

// WithPhase labels logs and metrics with the phase name.
func WithPhase(phase string) Option {
	return func(o *options) { o.phase = phase }
}

// WithoutFoldExpansion resolves only the non-folded variant of every baseline.
func WithoutFoldExpansion() Option {
	return func(o *options) { o.foldExpansion = false }
}

// RequireSimilarityBased keeps only variants that expose an item-item
// similarity: similarity-based baselines, or folded matrix factorization.
func RequireSimilarityBased() Option {
	return func(o *options) { o.requireSimilarityBased = true }
}

// Resolver turns case sets into dependencies.
type Resolver struct {
	catalog *experiment.Catalog
	loader  artifacts.Loader
	opts    options
	logger  zerolog.Logger
}

// New creates a Resolver.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(catalog *experiment.Catalog, loader artifacts.Loader, logger zerolog.Logger, opts ...Option) *Resolver {
	o := options{phase: "unknown", foldExpansion: true}
	for _, opt := range opts {
		opt(&o)
	}
	return &Resolver{
		catalog: catalog,
		loader:  loader,
		opts:    o,
		logger:  logger.With().Str("component", "resolver").Str("phase", o.phase).Logger(),
	}
}

// Compatible reports whether a downstream case may use a baseline case:
// both must share the benchmark and the tuning configuration.
func Compatible(down, base experiment.Case) bool {
	return down.Benchmark == base.Benchmark && down.Tuning == base.Tuning
}

// SimilarityVariants returns the KNN similarities of the baseline's tuning
// when the baseline has similarity variants, otherwise a single empty
// similarity. A similarity baseline whose tuning lists no similarities has
// no variants.
func (r *Resolver) SimilarityVariants(base experiment.Case) ([]string, error) {
	rec, err := r.catalog.Recommender(base.Recommender)
	if err != nil {
		return nil, err
	}
	if !rec.SupportsSimilarityVariants {
		return []string{""}, nil
	}
	tuning, err := r.catalog.Tuning(base.Tuning)
	if err != nil {
		return nil, err
	}
	if len(tuning.KNNSimilarityTypes) == 0 {
		return nil, nil
	}
	return tuning.KNNSimilarityTypes, nil
}

// FoldVariants returns [true, false] for matrix factorization baselines,
// otherwise [false].
func (r *Resolver) FoldVariants(base experiment.Case) ([]bool, error) {
	rec, err := r.catalog.Recommender(base.Recommender)
	if err != nil {
		return nil, err
	}
	if rec.SupportsFolding && r.opts.foldExpansion {
		return []bool{true, false}, nil
	}
	return []bool{false}, nil
}

// Variants returns the similarity × fold expansion of a baseline case.
func (r *Resolver) Variants(base experiment.Case) ([]Variant, error) {
	similarities, err := r.SimilarityVariants(base)
	if err != nil {
		return nil, err
	}
	folds, err := r.FoldVariants(base)
	if err != nil {
		return nil, err
	}

	variants := make([]Variant, 0, len(similarities)*len(folds))
	for _, sim := range similarities {
		for _, folded := range folds {
			variants = append(variants, Variant{Similarity: sim, TryFolded: folded})
		}
	}
	return variants, nil
}

// Resolve returns the usable variants of base for down. An incompatible
// pair yields no dependencies. The only error besides lookup and I/O
// failures is a *ConsistencyError.
func (r *Resolver) Resolve(ctx context.Context, down, base experiment.Case) ([]Dependency, error) {
	if !Compatible(down, base) {
		metrics.RecordIncompatiblePair(r.opts.phase)
		r.logger.Warn().
			Stringer("downstream", down).
			Stringer("baseline", base).
			Msg("Skipping incompatible case pair")
		return nil, nil
	}

	rec, err := r.catalog.Recommender(base.Recommender)
	if err != nil {
		return nil, err
	}
	bench, err := r.catalog.Benchmark(base.Benchmark)
	if err != nil {
		return nil, err
	}
	tuning, err := r.catalog.Tuning(base.Tuning)
	if err != nil {
		return nil, err
	}
	variants, err := r.Variants(base)
	if err != nil {
		return nil, err
	}

	var deps []Dependency
	for _, v := range variants {
		if r.opts.requireSimilarityBased && !rec.SimilarityBased && !(rec.SupportsFolding && v.TryFolded) {
			metrics.RecordVariantDropped(r.opts.phase, "not_similarity_based")
			continue
		}

		req := artifacts.LoadRequest{
			Benchmark:   bench.ID,
			Strategy:    tuning.EvaluationStrategy,
			Recommender: rec,
			Similarity:  v.Similarity,
			TryFolded:   v.TryFolded,
		}
		_, err := LoadPair(ctx, r.loader, req)
		switch {
		case err == nil:
			metrics.RecordVariantPlanned(r.opts.phase)
			deps = append(deps, Dependency{Downstream: down, Baseline: base, Variant: v})
		case errors.Is(err, ErrAbsent):
			metrics.RecordVariantDropped(r.opts.phase, "absent")
			r.logger.Warn().
				Stringer("downstream", down).
				Stringer("baseline", base).
				Str("similarity", v.Similarity).
				Bool("try_folded", v.TryFolded).
				Msg("Dropping variant: trained baseline not found")
		case errors.Is(err, ErrNotFolded):
			metrics.RecordVariantDropped(r.opts.phase, "not_folded")
			r.logger.Warn().
				Stringer("downstream", down).
				Stringer("baseline", base).
				Str("similarity", v.Similarity).
				Msg("Dropping variant: baseline cannot be folded")
		default:
			return nil, err
		}
	}
	return deps, nil
}

// ResolveAll resolves every downstream case against every baseline case,
// downstream-major, preserving case order.
func (r *Resolver) ResolveAll(ctx context.Context, downstream, baselines *experiment.CaseSet) ([]Dependency, error) {
	var all []Dependency
	for _, down := range downstream.Cases() {
		for _, base := range baselines.Cases() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			deps, err := r.Resolve(ctx, down, base)
			if err != nil {
				return nil, fmt.Errorf("resolving %s against %s: %w", down, base, err)
			}
			all = append(all, deps...)
		}
	}
	return all, nil
}
