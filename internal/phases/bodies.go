// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package phases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/dataset"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/resolver"
	"github.com/tomtom215/impressions-evaluation/internal/search"
)

// File name prefixes of the ablation studies.
const (
	AblationPrefix       = "ABLATION_UIM_FREQUENCY"
	SignalAblationSuffix = "ABLATION_ONLY_UIM_FREQUENCY"
)

// Env holds the collaborators job bodies run against.
type Env struct {
	Catalog   *experiment.Catalog
	Datasets  dataset.Loader
	Artifacts artifacts.Loader

	// Folds persists the folded models written by the folded phase.
	Folds artifacts.Saver

	Runner     search.Runner
	ResultsDir string
	Logger     zerolog.Logger

	now func() time.Time
}

// Register adds the body of every phase to reg.
func Register(reg *jobqueue.Registry, env *Env) {
	if env.now == nil {
		env.now = time.Now
	}
	env.Logger = env.Logger.With().Str("component", "job_body").Logger()

	reg.Register(Baselines.Method(), env.handler(Baselines, env.runBaseline))
	reg.Register(Folded.Method(), env.handler(Folded, env.runFolded))
	reg.Register(TimeAware.Method(), env.handler(TimeAware, env.runTimeAware))
	for _, p := range []Phase{ReRanking, UserProfiles, Ablation, SignalAblation} {
		reg.Register(p.Method(), env.handler(p, env.runDownstream))
	}
}

type body func(ctx context.Context, phase Phase, args Args, logger zerolog.Logger) error

func (e *Env) handler(phase Phase, run body) jobqueue.Handler {
	return func(ctx context.Context, job jobqueue.Job) error {
		var args Args
		if err := job.DecodeArgs(&args); err != nil {
			return err
		}
		logger := e.Logger.With().
			Str("phase", string(phase)).
			Str("key", job.Key).
			Stringer("case", args.Case).
			Logger()
		return run(ctx, phase, args, logger)
	}
}

// entry is a case looked up in the catalog.
type entry struct {
	bench  experiment.Benchmark
	rec    experiment.Recommender
	tuning experiment.TuningParameters
}

func (e *Env) lookup(c experiment.Case) (entry, error) {
	bench, err := e.Catalog.Benchmark(c.Benchmark)
	if err != nil {
		return entry{}, err
	}
	rec, err := e.Catalog.Recommender(c.Recommender)
	if err != nil {
		return entry{}, err
	}
	tuning, err := e.Catalog.Tuning(c.Tuning)
	if err != nil {
		return entry{}, err
	}
	return entry{bench: bench, rec: rec, tuning: tuning}, nil
}

// inputs are the matrices a search reads.
type inputs struct {
	splits          *dataset.Splits
	train           *dataset.ImpressionFeatures
	trainValidation *dataset.ImpressionFeatures
}

func (e *Env) loadInputs(ctx context.Context, en entry, withFeatures bool) (*inputs, error) {
	strategy := en.tuning.EvaluationStrategy
	splits, err := e.Datasets.URMSplits(ctx, en.bench.ID, strategy)
	if err != nil {
		return nil, err
	}
	in := &inputs{splits: splits}
	if !withFeatures {
		return in, nil
	}

	if in.train, err = dataset.LoadImpressionFeatures(ctx, e.Datasets, en.bench, strategy, dataset.FeatureSplitTrain); err != nil {
		return nil, err
	}
	if in.trainValidation, err = dataset.LoadImpressionFeatures(ctx, e.Datasets, en.bench, strategy, dataset.FeatureSplitTrainValidation); err != nil {
		return nil, err
	}
	return in, nil
}

// loadBaseline loads both lifecycle states of a baseline variant. Unusable
// variants become skips; a consistency violation is returned unchanged.
func (e *Env) loadBaseline(ctx context.Context, base entry, similarity string, tryFolded bool, logger zerolog.Logger) (*resolver.Pair, error) {
	pair, err := resolver.LoadPair(ctx, e.Artifacts, artifacts.LoadRequest{
		Benchmark:   base.bench.ID,
		Strategy:    base.tuning.EvaluationStrategy,
		Recommender: base.rec,
		Similarity:  similarity,
		TryFolded:   tryFolded,
	})
	switch {
	case err == nil:
		return pair, nil
	case errors.Is(err, resolver.ErrAbsent):
		logger.Warn().
			Str("baseline", base.rec.Name).
			Str("benchmark", string(base.bench.ID)).
			Bool("try_folded", tryFolded).
			Msg("Early-skipping: could not load trained baseline")
		return nil, jobqueue.Skip("trained %s not found", base.rec.Name)
	case errors.Is(err, resolver.ErrNotFolded):
		logger.Warn().
			Str("baseline", base.rec.Name).
			Msg("Early-skipping: baseline cannot be folded")
		return nil, jobqueue.Skip("%s cannot be folded", base.rec.Name)
	default:
		return nil, err
	}
}

func (e *Env) newRequest(phase Phase, en entry, space search.Space, strategy search.Strategy, fileRoot string) search.Request {
	req := search.NewRequest(en.tuning, en.rec.Name, en.bench.ID)
	req.Strategy = strategy
	req.SearchSpace = space
	req.OutputFileNameRoot = fileRoot
	req.OutputFolderPath = ExperimentsDir(e.ResultsDir, phase, en.bench.ID, en.tuning.EvaluationStrategy)
	return req
}

func (e *Env) search(ctx context.Context, req search.Request, in *inputs, logger zerolog.Logger) error {
	req.URMValidation = in.splits.Validation
	req.URMTest = in.splits.Test

	logger.Info().
		Str("recommender", req.RecommenderName).
		Str("benchmark", req.Benchmark).
		Str("file_root", req.OutputFileNameRoot).
		Interface("urm_shapes", in.splits.Shapes()).
		Strs("search_space", req.SearchSpace.Names()).
		Int("n_cases", req.NumCases).
		Dur("max_total_time", req.MaxTotalTime).
		Msg("Hyper-parameter tuning arguments")

	if err := e.Runner.Search(ctx, req); err != nil {
		return fmt.Errorf("search of %s failed: %w", req.OutputFileNameRoot, err)
	}
	return nil
}

// runBaseline tunes a baseline on interactions only.
func (e *Env) runBaseline(ctx context.Context, phase Phase, args Args, logger zerolog.Logger) error {
	en, err := e.lookup(args.Case)
	if err != nil {
		return err
	}
	if en.rec.Kind != experiment.KindBaseline {
		logger.Warn().Stringer("kind", en.rec.Kind).Msg("Early-returning: recommender is not a baseline")
		return jobqueue.Skip("%s is not a baseline", en.rec.Name)
	}

	in, err := e.loadInputs(ctx, en, false)
	if err != nil {
		return err
	}
	space, strategy, err := search.RecommenderSpace(en.rec.ID)
	if err != nil {
		return err
	}

	req := e.newRequest(phase, en, space, strategy, artifacts.BaselineFileRoot(en.rec, args.Similarity))
	seed := en.tuning.ReproducibilitySeed
	req.RecommenderArgs = search.RecommenderArgs{URMTrain: in.splits.Train, Seed: seed}
	req.RecommenderArgsLastTest = search.RecommenderArgs{URMTrain: in.splits.TrainValidation, Seed: seed}
	if args.Similarity != "" {
		constructor := map[string]string{"similarity": args.Similarity}
		req.RecommenderArgs.Constructor = constructor
		req.RecommenderArgsLastTest.Constructor = constructor
	}

	return e.search(ctx, req, in, logger)
}

// runFolded folds a tuned matrix factorization baseline into an item
// similarity model, stores it for the downstream phases and evaluates it once.
func (e *Env) runFolded(ctx context.Context, phase Phase, args Args, logger zerolog.Logger) error {
	en, err := e.lookup(args.Case)
	if err != nil {
		return err
	}
	if !en.rec.SupportsFolding {
		logger.Warn().Msg("Early-returning: recommender cannot be folded")
		return jobqueue.Skip("%s cannot be folded", en.rec.Name)
	}

	in, err := e.loadInputs(ctx, en, false)
	if err != nil {
		return err
	}
	pair, err := e.loadBaseline(ctx, en, "", false, logger)
	if err != nil {
		return err
	}

	folded := [2]*artifacts.TrainedRecommender{}
	for i, source := range []*artifacts.TrainedRecommender{pair.Train, pair.TrainValidation} {
		tr := &artifacts.TrainedRecommender{
			RecommenderName: en.rec.FoldedName(),
			ModelType:       source.ModelType,
			Folded:          true,
			Hyperparameters: source.Hyperparameters,
			TrainedAt:       e.now().UTC(),
		}
		req := artifacts.LoadRequest{
			Benchmark:   en.bench.ID,
			Strategy:    en.tuning.EvaluationStrategy,
			Recommender: en.rec,
			ModelType:   source.ModelType,
			TryFolded:   true,
		}
		if err := e.Folds.Save(ctx, req, tr); err != nil {
			return err
		}
		folded[i] = tr
	}

	req := e.newRequest(phase, en, search.Space{}, search.StrategySingleCase, artifacts.FoldedFileRoot(en.rec))
	req.RecommenderName = en.rec.FoldedName()
	seed := en.tuning.ReproducibilitySeed
	req.RecommenderArgs = search.RecommenderArgs{URMTrain: in.splits.Train, Seed: seed, TrainedRecommender: folded[0]}
	req.RecommenderArgsLastTest = search.RecommenderArgs{URMTrain: in.splits.TrainValidation, Seed: seed, TrainedRecommender: folded[1]}

	return e.search(ctx, req, in, logger)
}

// runTimeAware tunes a heuristic on the impression features.
func (e *Env) runTimeAware(ctx context.Context, phase Phase, args Args, logger zerolog.Logger) error {
	en, err := e.lookup(args.Case)
	if err != nil {
		return err
	}
	if en.rec.Kind != experiment.KindHeuristic {
		logger.Warn().Stringer("kind", en.rec.Kind).Msg("Early-returning: recommender is not a time-aware heuristic")
		return jobqueue.Skip("%s is not a time-aware heuristic", en.rec.Name)
	}

	in, err := e.loadInputs(ctx, en, true)
	if err != nil {
		return err
	}
	space, strategy, err := search.RecommenderSpace(en.rec.ID)
	if err != nil {
		return err
	}

	req := e.newRequest(phase, en, space, strategy, en.rec.Name)
	seed := en.tuning.ReproducibilitySeed
	req.RecommenderArgs = search.RecommenderArgs{URMTrain: in.splits.Train, Features: in.train, Seed: seed}
	req.RecommenderArgsLastTest = search.RecommenderArgs{URMTrain: in.splits.TrainValidation, Features: in.trainValidation, Seed: seed}

	return e.search(ctx, req, in, logger)
}

// runDownstream tunes a recommender that wraps a trained baseline: the
// re-ranking, user-profile and ablation phases.
func (e *Env) runDownstream(ctx context.Context, phase Phase, args Args, logger zerolog.Logger) error {
	if args.Baseline == nil {
		return fmt.Errorf("%w: %s job without baseline", jobqueue.ErrInvalidJob, phase)
	}
	logger = logger.With().
		Stringer("baseline_case", *args.Baseline).
		Str("similarity", similarityPart(args.Similarity)).
		Bool("try_folded", args.TryFolded).
		Logger()

	if !resolver.Compatible(args.Case, *args.Baseline) {
		logger.Warn().Msg("Early-returning: received an invalid configuration")
		return jobqueue.Skip("%s and %s are incompatible", args.Case, *args.Baseline)
	}

	down, err := e.lookup(args.Case)
	if err != nil {
		return err
	}
	base, err := e.lookup(*args.Baseline)
	if err != nil {
		return err
	}

	prefix, space, strategy, err := e.downstreamSearch(phase, down.rec, args.Signal)
	if err != nil {
		if errors.Is(err, jobqueue.ErrSkipped) {
			logger.Warn().Err(err).Msg("Early-returning: recommender does not support this study")
		}
		return err
	}
	if phase == UserProfiles && !base.rec.SimilarityBased && !(base.rec.SupportsFolding && args.TryFolded) {
		logger.Warn().Msg("Early-returning: baseline is not similarity based")
		return jobqueue.Skip("%s is not similarity based", base.rec.Name)
	}

	in, err := e.loadInputs(ctx, down, true)
	if err != nil {
		return err
	}
	pair, err := e.loadBaseline(ctx, base, args.Similarity, args.TryFolded, logger)
	if err != nil {
		return err
	}

	fileRoot := down.rec.Name + "_" + pair.Train.RecommenderName
	if prefix != "" {
		fileRoot = prefix + "_" + fileRoot
	}

	req := e.newRequest(phase, down, space, strategy, fileRoot)
	seed := down.tuning.ReproducibilitySeed
	req.RecommenderArgs = search.RecommenderArgs{
		URMTrain:           in.splits.Train,
		Features:           in.train,
		Seed:               seed,
		TrainedRecommender: pair.Train,
	}
	req.RecommenderArgsLastTest = search.RecommenderArgs{
		URMTrain:           in.splits.TrainValidation,
		Features:           in.trainValidation,
		Seed:               seed,
		TrainedRecommender: pair.TrainValidation,
	}

	return e.search(ctx, req, in, logger)
}

// downstreamSearch returns the file name prefix and search space of a
// downstream phase.
func (e *Env) downstreamSearch(phase Phase, rec experiment.Recommender, signal experiment.SignalAnalysisType) (string, search.Space, search.Strategy, error) {
	switch phase {
	case Ablation, SignalAblation:
		if rec.ID != experiment.ImpressionsDiscounting {
			return "", nil, "", jobqueue.Skip("ablation requires %s, got %s", experiment.ImpressionsDiscounting, rec.ID)
		}
	default:
		space, strategy, err := search.RecommenderSpace(rec.ID)
		return "", space, strategy, err
	}

	if phase == Ablation {
		space, err := search.ImpressionsDiscountingSpace(search.SpaceAblationOnlyUIMFrequency)
		return AblationPrefix, space, search.StrategyBayesian, err
	}

	if signal == "" {
		return "", nil, "", fmt.Errorf("%w: signal ablation without signal analysis type", jobqueue.ErrInvalidJob)
	}
	space, err := search.ImpressionsDiscountingSpace(search.SignalAblationSpaceName(signal))
	if err != nil {
		return "", nil, "", err
	}
	return string(signal) + "_" + SignalAblationSuffix, space, search.StrategyBayesian, nil
}
