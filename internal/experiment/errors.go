// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package experiment

import "errors"

// ErrUnknownBenchmark is returned when a benchmark identifier is not in the catalog.
var ErrUnknownBenchmark = errors.New("unknown benchmark")

// ErrUnknownRecommender is returned when a recommender identifier is not in the catalog.
var ErrUnknownRecommender = errors.New("unknown recommender")

// ErrUnknownTuning is returned when a tuning-parameters identifier is not in the catalog.
var ErrUnknownTuning = errors.New("unknown hyperparameter tuning parameters")

// ErrInvalidCatalog is returned when catalog tables are inconsistent.
var ErrInvalidCatalog = errors.New("invalid catalog")
