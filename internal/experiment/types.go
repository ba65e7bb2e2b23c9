// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package experiment

import "time"

// BenchmarkID names a dataset together with its split configuration.
type BenchmarkID string

// Built-in benchmarks.
const (
	ContentWiseImpressions BenchmarkID = "ContentWiseImpressions"
	MINDSmall              BenchmarkID = "MINDSmall"
	FINNNoSlates           BenchmarkID = "FINNNoSlates"
)

// RecommenderID identifies a recommender in the catalog.
type RecommenderID string

// Baseline recommenders, trained on interactions only.
const (
	Random         RecommenderID = "RANDOM"
	TopPopular     RecommenderID = "TOP_POPULAR"
	UserKNN        RecommenderID = "USER_KNN"
	ItemKNN        RecommenderID = "ITEM_KNN"
	MFBPR          RecommenderID = "MF_BPR"
	NMF            RecommenderID = "NMF"
	PureSVD        RecommenderID = "PURE_SVD"
	RP3Beta        RecommenderID = "RP3_BETA"
	SLIMElasticNet RecommenderID = "SLIM_ELASTIC_NET"
	SLIMBPR        RecommenderID = "SLIM_BPR"
)

// Impression-aware recommenders.
const (
	LastImpressions         RecommenderID = "LAST_IMPRESSIONS"
	FrequencyRecency        RecommenderID = "FREQUENCY_RECENCY"
	Recency                 RecommenderID = "RECENCY"
	Cycling                 RecommenderID = "CYCLING"
	ImpressionsDiscounting  RecommenderID = "IMPRESSIONS_DISCOUNTING"
	UserWeightedUserProfile RecommenderID = "USER_WEIGHTED_USER_PROFILE"
	ItemWeightedUserProfile RecommenderID = "ITEM_WEIGHTED_USER_PROFILE"
)

// TuningID identifies a set of hyperparameter tuning parameters.
type TuningID string

// LeaveLastOutBayesian50x16 is the tuning configuration used by every phase.
const LeaveLastOutBayesian50x16 TuningID = "LEAVE_LAST_OUT_BAYESIAN_50_16"

// EvaluationStrategy names how interactions are split into train, validation and test.
type EvaluationStrategy string

// Evaluation strategies.
const (
	LeaveLastKOut  EvaluationStrategy = "LEAVE_LAST_K_OUT"
	TimestampSplit EvaluationStrategy = "TIMESTAMP"
)

// LastSeenColumn selects which last-seen impression feature a benchmark provides.
type LastSeenColumn string

// Last-seen columns.
const (
	LastSeenTotalDays LastSeenColumn = "total_days"
	LastSeenEuclidean LastSeenColumn = "euclidean"
)

// Kind groups recommenders by the phase that tunes them.
type Kind int

// Recommender kinds.
const (
	KindBaseline Kind = iota
	KindHeuristic
	KindReRanking
	KindUserProfile
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindBaseline:
		return "baseline"
	case KindHeuristic:
		return "heuristic"
	case KindReRanking:
		return "re-ranking"
	case KindUserProfile:
		return "user-profile"
	default:
		return "unknown"
	}
}

// SignalAnalysisType restricts the sign of the impression signal in the
// signal-analysis ablation study.
type SignalAnalysisType string

// Signal analysis types.
const (
	SignalPositive SignalAnalysisType = "SIGNAL_ANALYSIS_SIGN_POSITIVE"
	SignalNegative SignalAnalysisType = "SIGNAL_ANALYSIS_SIGN_NEGATIVE"
)

// SignalAnalysisTypes returns every signal analysis type in declaration order.
func SignalAnalysisTypes() []SignalAnalysisType {
	return []SignalAnalysisType{SignalPositive, SignalNegative}
}

// Benchmark is the static descriptor of a benchmark.
type Benchmark struct {
	ID BenchmarkID

	// Priority weights every job on this benchmark.
	Priority int

	// LastSeenColumn is the column of the last-seen impression feature.
	LastSeenColumn LastSeenColumn
}

// Recommender is the static descriptor of a recommender.
//
// Capability flags replace type inspection of the recommender class:
// SupportsSimilarityVariants marks the k-nearest-neighbor family,
// SupportsFolding marks matrix-factorization models that can be folded into
// an item-similarity representation, and SimilarityBased marks models that
// expose an item or user similarity usable by the user-profile recommenders.
type Recommender struct {
	ID       RecommenderID
	Name     string
	Priority int
	Kind     Kind

	SupportsSimilarityVariants bool
	SupportsFolding            bool
	SimilarityBased            bool
}

// FoldedName returns the name tag a folded version of this recommender carries.
func (r Recommender) FoldedName() string {
	return "FoldedMatrixFactorizationRecommender_" + r.Name
}

// TuningParameters holds the fixed options of a hyperparameter search.
type TuningParameters struct {
	ID                     TuningID
	EvaluationStrategy     EvaluationStrategy
	ReproducibilitySeed    int64
	CutoffToOptimize       int
	Cutoffs                []int
	MetricToOptimize       string
	NumCases               int
	NumRandomStarts        int
	MaxTotalTime           time.Duration
	EvaluateOnTest         string
	ResumeFromSaved        bool
	SaveMetadata           bool
	SaveModel              string
	TerminateOnMemoryError bool
	KNNSimilarityTypes     []string
}

// Clone returns a deep copy of the parameters.
func (p TuningParameters) Clone() TuningParameters {
	c := p
	c.Cutoffs = append([]int(nil), p.Cutoffs...)
	c.KNNSimilarityTypes = append([]string(nil), p.KNNSimilarityTypes...)
	return c
}
