// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package dataset

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/metrics"
	"github.com/tomtom215/impressions-evaluation/internal/storage"
)

const (
	kindSparseMatrix = "sparse_matrix"
	featuresDir      = "features"
)

// Builder produces the matrices of a benchmark when they are missing on disk.
// Implementations wrap the external dataset readers.
type Builder interface {
	Build(ctx context.Context, benchmark experiment.Benchmark, strategy experiment.EvaluationStrategy) (*Splits, map[FeatureKey]*Matrix, error)
}

// Store reads and writes dataset matrices below a data directory:
//
//	<data>/<benchmark>/<strategy>/urm_<split>.gob.gz
//	<data>/<benchmark>/<strategy>/features/<feature>-<column>-<split>.gob.gz
type Store struct {
	blobs   *storage.Store
	builder Builder
	logger  zerolog.Logger
}

// NewStore creates a dataset store. builder may be nil, in which case Ensure
// only reports missing files.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(dataDir string, builder Builder, logger zerolog.Logger) (*Store, error) {
	blobs, err := storage.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}
	return &Store{
		blobs:   blobs,
		builder: builder,
		logger:  logger.With().Str("component", "dataset_store").Logger(),
	}, nil
}

func splitName(benchmark experiment.BenchmarkID, strategy experiment.EvaluationStrategy, split Split) string {
	return path.Join(string(benchmark), string(strategy), "urm_"+string(split))
}

func featureName(key FeatureKey) string {
	return path.Join(string(key.Benchmark), string(key.Strategy), featuresDir, key.Name())
}

// URMSplits loads the four URM splits of a benchmark.
func (s *Store) URMSplits(ctx context.Context, benchmark experiment.BenchmarkID, strategy experiment.EvaluationStrategy) (*Splits, error) {
	var splits Splits
	for _, split := range AllSplits() {
		var m Matrix
		if _, err := s.blobs.Load(ctx, splitName(benchmark, strategy, split), &m); err != nil {
			return nil, fmt.Errorf("failed to load %s split of %s/%s: %w", split, benchmark, strategy, err)
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s split of %s/%s: %w", split, benchmark, strategy, err)
		}
		switch split {
		case SplitTrain:
			splits.Train = &m
		case SplitValidation:
			splits.Validation = &m
		case SplitTest:
			splits.Test = &m
		case SplitTrainValidation:
			splits.TrainValidation = &m
		}
	}
	return &splits, nil
}

// ImpressionFeature loads one impression feature matrix.
func (s *Store) ImpressionFeature(ctx context.Context, key FeatureKey) (*Matrix, error) {
	var m Matrix
	if _, err := s.blobs.Load(ctx, featureName(key), &m); err != nil {
		return nil, fmt.Errorf("failed to load feature %s: %w", key, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("feature %s: %w", key, err)
	}
	return &m, nil
}

// SaveSplits writes the URM splits of a benchmark.
func (s *Store) SaveSplits(ctx context.Context, benchmark experiment.BenchmarkID, strategy experiment.EvaluationStrategy, splits *Splits) error {
	for _, split := range AllSplits() {
		m := splits.Get(split)
		if m == nil {
			return fmt.Errorf("%w: %s split of %s/%s is nil", ErrInvalidMatrix, split, benchmark, strategy)
		}
		if err := s.saveMatrix(ctx, splitName(benchmark, strategy, split), m); err != nil {
			return err
		}
	}
	return nil
}

// SaveFeature writes one impression feature matrix.
func (s *Store) SaveFeature(ctx context.Context, key FeatureKey, m *Matrix) error {
	return s.saveMatrix(ctx, featureName(key), m)
}

func (s *Store) saveMatrix(ctx context.Context, name string, m *Matrix) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("refusing to save %s: %w", name, err)
	}
	meta := storage.Metadata{
		Kind: kindSparseMatrix,
		Attributes: map[string]string{
			"shape": fmt.Sprintf("%dx%d", m.Rows, m.Cols),
			"nnz":   fmt.Sprintf("%d", m.NNZ()),
		},
	}
	if _, err := s.blobs.Save(ctx, name, m, meta); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// Missing returns the names of required files that do not exist.
func (s *Store) Missing(b experiment.Benchmark, strategy experiment.EvaluationStrategy) []string {
	var missing []string
	for _, split := range AllSplits() {
		if name := splitName(b.ID, strategy, split); !s.blobs.Exists(name) {
			missing = append(missing, name)
		}
	}
	for _, key := range RequiredFeatureKeys(b, strategy) {
		if name := featureName(key); !s.blobs.Exists(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Ensure makes sure every matrix jobs read for a benchmark exists on disk.
// Missing files are produced by the builder. Without a builder, missing
// files are an error wrapping ErrDatasetMissing.
func (s *Store) Ensure(ctx context.Context, b experiment.Benchmark, strategy experiment.EvaluationStrategy) error {
	missing := s.Missing(b, strategy)
	if len(missing) == 0 {
		metrics.RecordDatasetEnsure("complete")
		s.logger.Debug().
			Str("benchmark", string(b.ID)).
			Str("evaluation_strategy", string(strategy)).
			Msg("Dataset complete")
		return nil
	}

	if s.builder == nil {
		metrics.RecordDatasetEnsure("missing")
		return fmt.Errorf("%w: %s/%s lacks %d files (first: %s)", ErrDatasetMissing, b.ID, strategy, len(missing), missing[0])
	}

	s.logger.Info().
		Str("benchmark", string(b.ID)).
		Str("evaluation_strategy", string(strategy)).
		Int("missing_files", len(missing)).
		Msg("Building dataset")

	splits, features, err := s.builder.Build(ctx, b, strategy)
	if err != nil {
		metrics.RecordDatasetEnsure("error")
		return fmt.Errorf("failed to build dataset %s/%s: %w", b.ID, strategy, err)
	}
	if splits == nil {
		return fmt.Errorf("%w: builder returned no splits for %s/%s", ErrDatasetMissing, b.ID, strategy)
	}
	if err := s.SaveSplits(ctx, b.ID, strategy, splits); err != nil {
		return err
	}
	for _, key := range RequiredFeatureKeys(b, strategy) {
		m, ok := features[key]
		if !ok {
			return fmt.Errorf("%w: builder returned no feature %s", ErrDatasetMissing, key)
		}
		if err := s.SaveFeature(ctx, key, m); err != nil {
			return err
		}
	}

	metrics.RecordDatasetEnsure("built")
	return nil
}

// IsMissing reports whether err means a dataset file was not found.
func IsMissing(err error) bool {
	return errors.Is(err, ErrDatasetMissing) || errors.Is(err, storage.ErrNotFound)
}
