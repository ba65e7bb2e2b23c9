// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package artifacts loads and saves trained recommenders produced by the
// baseline and folded phases.
//
// A trained recommender is stored twice per configuration, once fitted on
// the TRAIN split and once on TRAIN_VALIDATION:
//
//	<results>/<phase>/<benchmark>/<strategy>/models/<file root>_<model type>.gob.gz
//
// Non-folded artifacts live under the baselines phase, folded ones under
// the folded phase. A missing file is not an error: Load returns nil.
package artifacts

import (
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

// ErrInvalidRequest is returned for load or save requests missing identifiers.
var ErrInvalidRequest = errors.New("invalid artifact request")

// Phase directories that hold trained models.
const (
	BaselinesDir = "baselines"
	FoldedDir    = "folded"
	ModelsDir    = "models"
)

// ModelType is the lifecycle state of a trained recommender.
type ModelType string

// Model types.
const (
	ModelTrain           ModelType = "TRAIN"
	ModelTrainValidation ModelType = "TRAIN_VALIDATION"
)

// ModelTypes returns both lifecycle states, TRAIN first.
func ModelTypes() []ModelType {
	return []ModelType{ModelTrain, ModelTrainValidation}
}

// TrainedRecommender is a fitted model handle. Consumers treat it as read-only.
type TrainedRecommender struct {
	// RecommenderName is the name tag the model reports. Folded models
	// report the folded name of their source recommender.
	RecommenderName string `json:"recommender_name"`

	ModelType  ModelType `json:"model_type"`
	Folded     bool      `json:"folded"`
	Similarity string    `json:"similarity,omitempty"`

	Hyperparameters map[string]float64 `json:"hyperparameters,omitempty"`
	TrainedAt       time.Time          `json:"trained_at"`
}

// LoadRequest identifies one trained recommender.
type LoadRequest struct {
	Benchmark   experiment.BenchmarkID
	Strategy    experiment.EvaluationStrategy
	Recommender experiment.Recommender
	Similarity  string
	ModelType   ModelType
	TryFolded   bool
}

// Validate checks that every identifier is set.
func (r LoadRequest) Validate() error {
	switch {
	case r.Benchmark == "":
		return fmt.Errorf("%w: empty benchmark", ErrInvalidRequest)
	case r.Strategy == "":
		return fmt.Errorf("%w: empty evaluation strategy", ErrInvalidRequest)
	case r.Recommender.Name == "":
		return fmt.Errorf("%w: empty recommender name", ErrInvalidRequest)
	case r.ModelType != ModelTrain && r.ModelType != ModelTrainValidation:
		return fmt.Errorf("%w: model type %q", ErrInvalidRequest, r.ModelType)
	}
	return nil
}

// PhaseDir returns the phase directory the artifact lives under.
func (r LoadRequest) PhaseDir() string {
	if r.TryFolded {
		return FoldedDir
	}
	return BaselinesDir
}

// FileRoot returns the file name root without model type.
func (r LoadRequest) FileRoot() string {
	if r.TryFolded {
		return FoldedFileRoot(r.Recommender)
	}
	return BaselineFileRoot(r.Recommender, r.Similarity)
}

// BaselineFileRoot returns "<name>" or "<name>_<similarity>".
func BaselineFileRoot(rec experiment.Recommender, similarity string) string {
	if similarity == "" {
		return rec.Name
	}
	return rec.Name + "_" + similarity
}

// FoldedFileRoot returns "Folded<name>".
func FoldedFileRoot(rec experiment.Recommender) string {
	return "Folded" + rec.Name
}
