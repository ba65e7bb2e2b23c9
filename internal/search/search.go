// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package search describes hyperparameter searches and hands them to an
// external optimizer.
//
// Jobs build a Request with the fixed option set of the tuning parameters,
// the search space of the recommender under test and the constructor
// arguments for both lifecycle states. A Runner executes it. The default
// ManifestRunner writes the request as a JSON manifest next to the
// experiment outputs; CommandRunner additionally invokes an optimizer
// process on that manifest.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/dataset"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/validation"
)

// ErrInvalidRequest is returned when a request fails validation.
var ErrInvalidRequest = errors.New("invalid search request")

// Strategy selects how the optimizer explores the search space.
type Strategy string

// Search strategies.
const (
	StrategyBayesian   Strategy = "bayesian_skopt"
	StrategySingleCase Strategy = "single_case"
)

// RecommenderArgs are the constructor arguments of the recommender under
// test for one lifecycle state.
type RecommenderArgs struct {
	URMTrain *dataset.Matrix `json:"-" validate:"required"`

	// Impression features, nil for recommenders that only read interactions.
	Features *dataset.ImpressionFeatures `json:"-"`

	Seed int64 `json:"seed"`

	// TrainedRecommender is the baseline a re-ranking or user-profile
	// recommender wraps, nil otherwise.
	TrainedRecommender *artifacts.TrainedRecommender `json:"trained_recommender,omitempty"`

	// Constructor holds fixed keyword arguments, e.g. the KNN similarity.
	Constructor map[string]string `json:"constructor,omitempty"`
}

// Request is one hyperparameter search.
type Request struct {
	Strategy        Strategy `json:"strategy" validate:"oneof=bayesian_skopt single_case"`
	RecommenderName string   `json:"recommender_name" validate:"required"`
	Benchmark       string   `json:"benchmark" validate:"required"`

	CutoffToOptimize int    `json:"cutoff_to_optimize" validate:"gte=1"`
	Cutoffs          []int  `json:"cutoffs" validate:"min=1"`
	EvaluateOnTest   string `json:"evaluate_on_test" validate:"oneof=all best last no"`

	SearchSpace Space `json:"hyperparameter_search_space"`

	MaxTotalTime     time.Duration `json:"max_total_time" validate:"gt=0"`
	MetricToOptimize string        `json:"metric_to_optimize" validate:"required"`

	NumCases        int `json:"n_cases" validate:"gte=1"`
	NumRandomStarts int `json:"n_random_starts" validate:"gte=0,ltefield=NumCases"`

	OutputFileNameRoot string `json:"output_file_name_root" validate:"required,fileroot"`
	OutputFolderPath   string `json:"output_folder_path" validate:"required"`

	RecommenderArgs         RecommenderArgs `json:"recommender_input_args"`
	RecommenderArgsLastTest RecommenderArgs `json:"recommender_input_args_last_test"`

	// Evaluation splits.
	URMValidation *dataset.Matrix `json:"-" validate:"required"`
	URMTest       *dataset.Matrix `json:"-" validate:"required"`

	ResumeFromSaved        bool   `json:"resume_from_saved"`
	SaveMetadata           bool   `json:"save_metadata"`
	SaveModel              string `json:"save_model" validate:"oneof=all best last no"`
	TerminateOnMemoryError bool   `json:"terminate_on_memory_error"`
}

// NewRequest returns a request carrying the fixed options of the tuning
// parameters. Callers fill in the search space, outputs and recommender
// arguments.
func NewRequest(tuning experiment.TuningParameters, recommenderName string, benchmark experiment.BenchmarkID) Request {
	return Request{
		Strategy:               StrategyBayesian,
		RecommenderName:        recommenderName,
		Benchmark:              string(benchmark),
		CutoffToOptimize:       tuning.CutoffToOptimize,
		Cutoffs:                append([]int(nil), tuning.Cutoffs...),
		EvaluateOnTest:         tuning.EvaluateOnTest,
		MaxTotalTime:           tuning.MaxTotalTime,
		MetricToOptimize:       tuning.MetricToOptimize,
		NumCases:               tuning.NumCases,
		NumRandomStarts:        tuning.NumRandomStarts,
		ResumeFromSaved:        tuning.ResumeFromSaved,
		SaveMetadata:           tuning.SaveMetadata,
		SaveModel:              tuning.SaveModel,
		TerminateOnMemoryError: tuning.TerminateOnMemoryError,
	}
}

// Validate checks the request before it is handed to a runner.
func (r *Request) Validate() error {
	if err := validation.Validate(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Strategy == StrategyBayesian {
		if err := r.SearchSpace.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	return nil
}

// Runner executes hyperparameter searches.
type Runner interface {
	Search(ctx context.Context, req Request) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request) error

// Search implements Runner.
func (f RunnerFunc) Search(ctx context.Context, req Request) error {
	return f(ctx, req)
}
