// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package dataset

import (
	"context"
	"fmt"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

// Feature names an impression feature matrix.
type Feature string

// Impression features.
const (
	FeatureUserItemFrequency Feature = "user_item_frequency"
	FeatureUserItemPosition  Feature = "user_item_position"
	FeatureUserItemTimestamp Feature = "user_item_timestamp"
	FeatureUserItemLastSeen  Feature = "user_item_last_seen"
)

// Column names the value column a feature matrix was computed from.
type Column string

// Feature columns.
const (
	ColumnFrequency Column = "frequency"
	ColumnPosition  Column = "position"
	ColumnTimestamp Column = "timestamp"
)

// FeatureSplit names the interaction split a feature was computed on.
type FeatureSplit string

// Feature splits.
const (
	FeatureSplitTrain           FeatureSplit = "train"
	FeatureSplitTrainValidation FeatureSplit = "train_validation"
)

// FeatureSplits returns every feature split, train first.
func FeatureSplits() []FeatureSplit {
	return []FeatureSplit{FeatureSplitTrain, FeatureSplitTrainValidation}
}

// FeatureKey identifies one impression feature matrix of a benchmark.
type FeatureKey struct {
	Benchmark experiment.BenchmarkID
	Strategy  experiment.EvaluationStrategy
	Feature   Feature
	Column    Column
	Split     FeatureSplit
}

// Name returns the file stem of the feature, unique within a benchmark and strategy.
func (k FeatureKey) Name() string {
	return fmt.Sprintf("%s-%s-%s", k.Feature, k.Column, k.Split)
}

// String implements fmt.Stringer.
func (k FeatureKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Benchmark, k.Strategy, k.Name())
}

// FeatureKeys returns the frequency, position, timestamp and last-seen keys
// of a benchmark for one split. The last-seen column depends on the benchmark.
func FeatureKeys(b experiment.Benchmark, strategy experiment.EvaluationStrategy, split FeatureSplit) []FeatureKey {
	lastSeen := Column(b.LastSeenColumn)
	if lastSeen == "" {
		lastSeen = Column(experiment.LastSeenTotalDays)
	}

	key := func(f Feature, c Column) FeatureKey {
		return FeatureKey{Benchmark: b.ID, Strategy: strategy, Feature: f, Column: c, Split: split}
	}
	return []FeatureKey{
		key(FeatureUserItemFrequency, ColumnFrequency),
		key(FeatureUserItemPosition, ColumnPosition),
		key(FeatureUserItemTimestamp, ColumnTimestamp),
		key(FeatureUserItemLastSeen, lastSeen),
	}
}

// RequiredFeatureKeys returns every feature key jobs read for a benchmark.
func RequiredFeatureKeys(b experiment.Benchmark, strategy experiment.EvaluationStrategy) []FeatureKey {
	var keys []FeatureKey
	for _, split := range FeatureSplits() {
		keys = append(keys, FeatureKeys(b, strategy, split)...)
	}
	return keys
}

// ImpressionFeatures holds the four impression features of one split.
type ImpressionFeatures struct {
	Frequency *Matrix
	Position  *Matrix
	Timestamp *Matrix
	LastSeen  *Matrix
}

// Loader reads dataset matrices.
type Loader interface {
	URMSplits(ctx context.Context, benchmark experiment.BenchmarkID, strategy experiment.EvaluationStrategy) (*Splits, error)
	ImpressionFeature(ctx context.Context, key FeatureKey) (*Matrix, error)
}

// LoadImpressionFeatures loads the four impression features of a benchmark for one split.
func LoadImpressionFeatures(ctx context.Context, l Loader, b experiment.Benchmark, strategy experiment.EvaluationStrategy, split FeatureSplit) (*ImpressionFeatures, error) {
	keys := FeatureKeys(b, strategy, split)
	matrices := make([]*Matrix, len(keys))
	for i, key := range keys {
		m, err := l.ImpressionFeature(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to load impression feature %s: %w", key, err)
		}
		matrices[i] = m
	}

	return &ImpressionFeatures{
		Frequency: matrices[0],
		Position:  matrices[1],
		Timestamp: matrices[2],
		LastSeen:  matrices[3],
	}, nil
}
