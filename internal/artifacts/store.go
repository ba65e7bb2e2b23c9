// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
	"github.com/tomtom215/impressions-evaluation/internal/storage"
)

const kindTrainedRecommender = "trained_recommender"

// Loader returns a previously trained recommender, or nil when absent.
type Loader interface {
	LoadTrainedRecommender(ctx context.Context, req LoadRequest) (*TrainedRecommender, error)
}

// Saver persists a trained recommender under the location described by req.
type Saver interface {
	Save(ctx context.Context, req LoadRequest, tr *TrainedRecommender) error
}

// Store is the on-disk Loader used by jobs and the resolver.
type Store struct {
	blobs  *storage.Store
	logger zerolog.Logger
}

// NewStore opens the artifact store rooted at the results directory.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(resultsDir string, logger zerolog.Logger) (*Store, error) {
	blobs, err := storage.NewStore(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact store: %w", err)
	}
	return &Store{
		blobs:  blobs,
		logger: logger.With().Str("component", "artifact_store").Logger(),
	}, nil
}

// Name returns the blob name of the artifact described by req.
func Name(req LoadRequest) string {
	return path.Join(req.PhaseDir(), string(req.Benchmark), string(req.Strategy), ModelsDir,
		req.FileRoot()+"_"+string(req.ModelType))
}

// Path returns the file path of the artifact described by req.
func (s *Store) Path(req LoadRequest) string {
	return s.blobs.Path(Name(req))
}

// LoadTrainedRecommender implements Loader.
func (s *Store) LoadTrainedRecommender(ctx context.Context, req LoadRequest) (*TrainedRecommender, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var tr TrainedRecommender
	if _, err := s.blobs.Load(ctx, Name(req), &tr); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.RecordArtifactLoad(false, nil)
			s.logger.Debug().
				Str("artifact", Name(req)).
				Msg("Trained recommender not found")
			return nil, nil
		}
		metrics.RecordArtifactLoad(false, err)
		return nil, fmt.Errorf("failed to load trained recommender %s: %w", Name(req), err)
	}

	metrics.RecordArtifactLoad(true, nil)
	return &tr, nil
}

// Save writes a trained recommender under the location described by req.
func (s *Store) Save(ctx context.Context, req LoadRequest, tr *TrainedRecommender) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if tr == nil {
		return fmt.Errorf("%w: nil trained recommender", ErrInvalidRequest)
	}

	meta := storage.Metadata{
		Kind: kindTrainedRecommender,
		Attributes: map[string]string{
			"recommender": tr.RecommenderName,
			"model_type":  string(tr.ModelType),
			"folded":      fmt.Sprintf("%t", tr.Folded),
		},
	}
	if _, err := s.blobs.Save(ctx, Name(req), tr, meta); err != nil {
		return fmt.Errorf("failed to save trained recommender %s: %w", Name(req), err)
	}

	s.logger.Debug().
		Str("artifact", Name(req)).
		Str("recommender", tr.RecommenderName).
		Msg("Trained recommender saved")
	return nil
}

// List returns the metadata of every artifact below a phase directory.
func (s *Store) List(ctx context.Context, phaseDir string) ([]storage.Metadata, error) {
	return s.blobs.List(ctx, phaseDir)
}
