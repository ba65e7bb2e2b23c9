// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package search

import (
	"errors"
	"fmt"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

// ErrUnknownSpace is returned when no search space is registered under a name.
var ErrUnknownSpace = errors.New("unknown search space")

// Names of the impressions-discounting search spaces.
const (
	SpaceImpressionsDiscounting   = "IMPRESSIONS_DISCOUNTING"
	SpaceAblationOnlyUIMFrequency = "ABLATION_ONLY_UIM_FREQUENCY"
)

var discountingFunctions = []string{"LINEAR", "INVERSE", "EXPONENTIAL", "LOGARITHMIC", "QUADRATIC", "SQUARE_ROOT"}

var discountingSignals = []string{"user_frequency", "uim_frequency", "uim_position", "uim_last_seen"}

func impressionsDiscountingSpace() Space {
	s := Space{}
	for _, signal := range discountingSignals {
		s["reg_"+signal] = Real(1e-5, 1e2, PriorLogUniform)
		s["sign_"+signal] = Categorical("-1", "1")
		s["func_"+signal] = Categorical(discountingFunctions...)
	}
	return s
}

// ablationOnlyUIMFrequency keeps only the user-item frequency signal free.
func ablationOnlyUIMFrequency() Space {
	fixed := map[string]string{}
	for _, signal := range discountingSignals {
		if signal == "uim_frequency" {
			continue
		}
		fixed["reg_"+signal] = "0"
		fixed["sign_"+signal] = "1"
		fixed["func_"+signal] = "LINEAR"
	}
	return impressionsDiscountingSpace().Fix(fixed)
}

// SignalAblationSpaceName returns the space name of a signal-analysis ablation.
func SignalAblationSpaceName(signal experiment.SignalAnalysisType) string {
	return string(signal) + "_" + SpaceAblationOnlyUIMFrequency
}

// ImpressionsDiscountingSpace returns a named impressions-discounting space.
func ImpressionsDiscountingSpace(name string) (Space, error) {
	switch name {
	case SpaceImpressionsDiscounting:
		return impressionsDiscountingSpace(), nil
	case SpaceAblationOnlyUIMFrequency:
		return ablationOnlyUIMFrequency(), nil
	case SignalAblationSpaceName(experiment.SignalPositive):
		return ablationOnlyUIMFrequency().Fix(map[string]string{"sign_uim_frequency": "1"}), nil
	case SignalAblationSpaceName(experiment.SignalNegative):
		return ablationOnlyUIMFrequency().Fix(map[string]string{"sign_uim_frequency": "-1"}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSpace, name)
	}
}

// RecommenderSpace returns the search space and strategy of a recommender.
// Recommenders without hyperparameters are evaluated once with an empty space.
func RecommenderSpace(id experiment.RecommenderID) (Space, Strategy, error) {
	switch id {
	case experiment.Random, experiment.TopPopular, experiment.LastImpressions, experiment.Recency:
		return Space{}, StrategySingleCase, nil

	case experiment.UserKNN, experiment.ItemKNN:
		return Space{
			"topK":              Integer(5, 1000),
			"shrink":            Integer(0, 1000),
			"normalize":         Categorical("true", "false"),
			"feature_weighting": Categorical("none", "BM25", "TF-IDF"),
		}, StrategyBayesian, nil

	case experiment.MFBPR:
		return Space{
			"num_factors":   Integer(1, 200),
			"epochs":        Categorical("1500"),
			"batch_size":    Categorical("1", "16", "32", "64", "128", "256", "512", "1024"),
			"learning_rate": Real(1e-4, 1e-1, PriorLogUniform),
			"positive_reg":  Real(1e-5, 1e-2, PriorLogUniform),
			"negative_reg":  Real(1e-5, 1e-2, PriorLogUniform),
			"sgd_mode":      Categorical("sgd", "adagrad", "adam"),
			"dropout_quota": Real(0.01, 0.7, PriorUniform),
		}, StrategyBayesian, nil

	case experiment.NMF:
		return Space{
			"num_factors": Integer(1, 350),
			"solver":      Categorical("coordinate_descent", "multiplicative_update"),
			"init_type":   Categorical("random", "nndsvda"),
			"beta_loss":   Categorical("frobenius", "kullback-leibler"),
			"l1_ratio":    Real(1e-5, 1.0, PriorLogUniform),
			"alpha":       Real(1e-3, 1.0, PriorUniform),
		}, StrategyBayesian, nil

	case experiment.PureSVD:
		return Space{
			"num_factors": Integer(1, 350),
		}, StrategyBayesian, nil

	case experiment.RP3Beta:
		return Space{
			"topK":                 Integer(5, 1000),
			"alpha":                Real(0, 2, PriorUniform),
			"beta":                 Real(0, 2, PriorUniform),
			"normalize_similarity": Categorical("true", "false"),
		}, StrategyBayesian, nil

	case experiment.SLIMElasticNet:
		return Space{
			"topK":     Integer(5, 1000),
			"l1_ratio": Real(1e-5, 1.0, PriorLogUniform),
			"alpha":    Real(1e-3, 1.0, PriorUniform),
		}, StrategyBayesian, nil

	case experiment.SLIMBPR:
		return Space{
			"topK":          Integer(5, 1000),
			"epochs":        Categorical("1500"),
			"symmetric":     Categorical("true", "false"),
			"sgd_mode":      Categorical("sgd", "adagrad", "adam"),
			"lambda_i":      Real(1e-5, 1e-2, PriorLogUniform),
			"lambda_j":      Real(1e-5, 1e-2, PriorLogUniform),
			"learning_rate": Real(1e-4, 1e-1, PriorLogUniform),
		}, StrategyBayesian, nil

	case experiment.FrequencyRecency:
		return Space{
			"alpha": Real(1e-3, 1.0, PriorUniform),
		}, StrategyBayesian, nil

	case experiment.Cycling:
		return Space{
			"weight": Integer(1, 50),
			"sign":   Categorical("-1", "1"),
		}, StrategyBayesian, nil

	case experiment.ImpressionsDiscounting:
		return impressionsDiscountingSpace(), StrategyBayesian, nil

	case experiment.UserWeightedUserProfile, experiment.ItemWeightedUserProfile:
		return Space{
			"alpha": Real(1e-3, 1.0, PriorUniform),
			"sign":  Categorical("-1", "1"),
		}, StrategyBayesian, nil

	default:
		return nil, "", fmt.Errorf("%w: recommender %q", ErrUnknownSpace, id)
	}
}
