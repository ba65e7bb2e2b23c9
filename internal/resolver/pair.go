// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package resolver builds the dependency graph between downstream
// experiments and the baseline models they wrap.
//
// For every (downstream, baseline) case pair sharing a benchmark and tuning
// configuration, the baseline is expanded into its similarity and fold
// variants. Each variant is probed in the artifact store in both lifecycle
// states; variants without both artifacts, or requested as folded without a
// folded artifact, are dropped with a warning. Artifacts that disagree on
// their recommender name indicate corrupted persisted state and stop the
// run with a *ConsistencyError.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

var (
	// ErrAbsent means a trained artifact is missing in at least one lifecycle state.
	ErrAbsent = errors.New("trained recommender absent")

	// ErrNotFolded means a folded variant was requested but the artifact is not folded.
	ErrNotFolded = errors.New("trained recommender is not folded")
)

// ConsistencyError reports TRAIN and TRAIN_VALIDATION artifacts of one
// baseline variant carrying different recommender names.
type ConsistencyError struct {
	Benchmark           experiment.BenchmarkID
	Recommender         experiment.RecommenderID
	Similarity          string
	TryFolded           bool
	TrainName           string
	TrainValidationName string
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("inconsistent trained recommenders for %s on %s (similarity %q, folded %t): TRAIN is %q, TRAIN_VALIDATION is %q",
		e.Recommender, e.Benchmark, e.Similarity, e.TryFolded, e.TrainName, e.TrainValidationName)
}

// Fatal marks the error as halting the run.
func (e *ConsistencyError) Fatal() bool {
	return true
}

// Pair holds the two lifecycle states of a trained baseline.
type Pair struct {
	Train           *artifacts.TrainedRecommender
	TrainValidation *artifacts.TrainedRecommender
}

// LoadPair loads a baseline in both lifecycle states and checks them.
// It returns ErrAbsent, ErrNotFolded or a *ConsistencyError when the pair
// cannot be used. req.ModelType is ignored.
func LoadPair(ctx context.Context, loader artifacts.Loader, req artifacts.LoadRequest) (*Pair, error) {
	var loaded [2]*artifacts.TrainedRecommender
	for i, modelType := range artifacts.ModelTypes() {
		req.ModelType = modelType
		tr, err := loader.LoadTrainedRecommender(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s %s: %w", req.Recommender.Name, modelType, err)
		}
		if tr == nil {
			return nil, fmt.Errorf("%w: %s %s", ErrAbsent, artifacts.Name(req), modelType)
		}
		loaded[i] = tr
	}

	pair := &Pair{Train: loaded[0], TrainValidation: loaded[1]}
	if req.TryFolded && !(pair.Train.Folded && pair.TrainValidation.Folded) {
		return nil, fmt.Errorf("%w: %s", ErrNotFolded, req.Recommender.Name)
	}
	if pair.Train.RecommenderName != pair.TrainValidation.RecommenderName {
		return nil, &ConsistencyError{
			Benchmark:           req.Benchmark,
			Recommender:         req.Recommender.ID,
			Similarity:          req.Similarity,
			TryFolded:           req.TryFolded,
			TrainName:           pair.Train.RecommenderName,
			TrainValidationName: pair.TrainValidation.RecommenderName,
		}
	}
	return pair, nil
}
