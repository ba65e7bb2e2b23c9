// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package experiment

import (
	"fmt"
	"time"
)

// Catalog holds the immutable descriptor tables of a run.
// Lookups return copies, so callers cannot mutate the catalog.
type Catalog struct {
	benchmarks   map[BenchmarkID]Benchmark
	recommenders map[RecommenderID]Recommender
	tunings      map[TuningID]TuningParameters
}

// NewCatalog builds a catalog from descriptor lists.
// Identifiers must be non-empty and unique within their table.
func NewCatalog(benchmarks []Benchmark, recommenders []Recommender, tunings []TuningParameters) (*Catalog, error) {
	c := &Catalog{
		benchmarks:   make(map[BenchmarkID]Benchmark, len(benchmarks)),
		recommenders: make(map[RecommenderID]Recommender, len(recommenders)),
		tunings:      make(map[TuningID]TuningParameters, len(tunings)),
	}

	for _, b := range benchmarks {
		if b.ID == "" {
			return nil, fmt.Errorf("%w: benchmark with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.benchmarks[b.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate benchmark %s", ErrInvalidCatalog, b.ID)
		}
		if b.Priority <= 0 {
			return nil, fmt.Errorf("%w: benchmark %s has non-positive priority %d", ErrInvalidCatalog, b.ID, b.Priority)
		}
		c.benchmarks[b.ID] = b
	}

	for _, r := range recommenders {
		if r.ID == "" || r.Name == "" {
			return nil, fmt.Errorf("%w: recommender with empty id or name", ErrInvalidCatalog)
		}
		if _, dup := c.recommenders[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate recommender %s", ErrInvalidCatalog, r.ID)
		}
		if r.Priority <= 0 {
			return nil, fmt.Errorf("%w: recommender %s has non-positive priority %d", ErrInvalidCatalog, r.ID, r.Priority)
		}
		c.recommenders[r.ID] = r
	}

	for _, t := range tunings {
		if t.ID == "" {
			return nil, fmt.Errorf("%w: tuning parameters with empty id", ErrInvalidCatalog)
		}
		if _, dup := c.tunings[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate tuning parameters %s", ErrInvalidCatalog, t.ID)
		}
		c.tunings[t.ID] = t.Clone()
	}

	return c, nil
}

// Benchmark returns the descriptor of a benchmark.
func (c *Catalog) Benchmark(id BenchmarkID) (Benchmark, error) {
	b, ok := c.benchmarks[id]
	if !ok {
		return Benchmark{}, fmt.Errorf("%w: %s", ErrUnknownBenchmark, id)
	}
	return b, nil
}

// Recommender returns the descriptor of a recommender.
func (c *Catalog) Recommender(id RecommenderID) (Recommender, error) {
	r, ok := c.recommenders[id]
	if !ok {
		return Recommender{}, fmt.Errorf("%w: %s", ErrUnknownRecommender, id)
	}
	return r, nil
}

// Tuning returns a copy of the tuning parameters.
func (c *Catalog) Tuning(id TuningID) (TuningParameters, error) {
	t, ok := c.tunings[id]
	if !ok {
		return TuningParameters{}, fmt.Errorf("%w: %s", ErrUnknownTuning, id)
	}
	return t.Clone(), nil
}

// ValidateCases checks that every identifier of the case set is in the catalog
// and that every recommender has the expected kind.
func (c *Catalog) ValidateCases(cs *CaseSet, kinds ...Kind) error {
	for _, b := range cs.Benchmarks() {
		if _, err := c.Benchmark(b); err != nil {
			return err
		}
	}
	for _, t := range cs.Tunings() {
		if _, err := c.Tuning(t); err != nil {
			return err
		}
	}
	for _, id := range cs.Recommenders() {
		r, err := c.Recommender(id)
		if err != nil {
			return err
		}
		if len(kinds) > 0 && !containsKind(kinds, r.Kind) {
			return fmt.Errorf("%w: recommender %s is a %s recommender", ErrInvalidCatalog, id, r.Kind)
		}
	}
	return nil
}

func containsKind(kinds []Kind, k Kind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Overrides adjusts catalog tables from configuration.
type Overrides struct {
	BenchmarkPriorities   map[string]int
	RecommenderPriorities map[string]int
	KNNSimilarityTypes    []string
	MaxTotalTime          time.Duration
}

// WithOverrides returns a new catalog with the overrides applied.
// Unknown identifiers are rejected so that typos in configuration surface early.
func (c *Catalog) WithOverrides(o Overrides) (*Catalog, error) {
	benchmarks := make([]Benchmark, 0, len(c.benchmarks))
	for _, b := range c.benchmarks {
		benchmarks = append(benchmarks, b)
	}
	recommenders := make([]Recommender, 0, len(c.recommenders))
	for _, r := range c.recommenders {
		recommenders = append(recommenders, r)
	}
	tunings := make([]TuningParameters, 0, len(c.tunings))
	for _, t := range c.tunings {
		tunings = append(tunings, t.Clone())
	}

	for id, p := range o.BenchmarkPriorities {
		found := false
		for i := range benchmarks {
			if string(benchmarks[i].ID) == id {
				benchmarks[i].Priority = p
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBenchmark, id)
		}
	}

	for id, p := range o.RecommenderPriorities {
		found := false
		for i := range recommenders {
			if string(recommenders[i].ID) == id {
				recommenders[i].Priority = p
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRecommender, id)
		}
	}

	for i := range tunings {
		if len(o.KNNSimilarityTypes) > 0 {
			tunings[i].KNNSimilarityTypes = append([]string(nil), o.KNNSimilarityTypes...)
		}
		if o.MaxTotalTime > 0 {
			tunings[i].MaxTotalTime = o.MaxTotalTime
		}
	}

	return NewCatalog(benchmarks, recommenders, tunings)
}

// DefaultCatalog returns the catalog of the published impressions study.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultBenchmarks(), defaultRecommenders(), defaultTunings())
	if err != nil {
		// The built-in tables are static; a failure here is a programming error.
		panic(err)
	}
	return c
}

func defaultBenchmarks() []Benchmark {
	return []Benchmark{
		{ID: ContentWiseImpressions, Priority: 30, LastSeenColumn: LastSeenTotalDays},
		{ID: MINDSmall, Priority: 20, LastSeenColumn: LastSeenTotalDays},
		{ID: FINNNoSlates, Priority: 10, LastSeenColumn: LastSeenEuclidean},
	}
}

func defaultRecommenders() []Recommender {
	return []Recommender{
		{ID: Random, Name: "RandomRecommender", Priority: 30, Kind: KindBaseline},
		{ID: TopPopular, Name: "TopPopRecommender", Priority: 30, Kind: KindBaseline},

		{ID: UserKNN, Name: "UserKNNCFRecommender", Priority: 10, Kind: KindBaseline, SupportsSimilarityVariants: true, SimilarityBased: true},
		{ID: ItemKNN, Name: "ItemKNNCFRecommender", Priority: 10, Kind: KindBaseline, SupportsSimilarityVariants: true, SimilarityBased: true},

		{ID: MFBPR, Name: "MatrixFactorization_BPR_Cython_Recommender", Priority: 5, Kind: KindBaseline, SupportsFolding: true},
		{ID: NMF, Name: "NMFRecommender", Priority: 5, Kind: KindBaseline, SupportsFolding: true},
		{ID: PureSVD, Name: "PureSVDRecommender", Priority: 20, Kind: KindBaseline, SupportsFolding: true},

		{ID: RP3Beta, Name: "RP3betaRecommender", Priority: 20, Kind: KindBaseline, SimilarityBased: true},

		{ID: SLIMElasticNet, Name: "SLIMElasticNetRecommender", Priority: 1, Kind: KindBaseline, SimilarityBased: true},
		{ID: SLIMBPR, Name: "SLIM_BPR_Recommender", Priority: 1, Kind: KindBaseline, SimilarityBased: true},

		{ID: LastImpressions, Name: "LastImpressionsRecommender", Priority: 30, Kind: KindHeuristic},
		{ID: FrequencyRecency, Name: "FrequencyRecencyRecommender", Priority: 30, Kind: KindHeuristic},
		{ID: Recency, Name: "RecencyRecommender", Priority: 30, Kind: KindHeuristic},

		{ID: Cycling, Name: "CyclingRecommender", Priority: 20, Kind: KindReRanking},
		{ID: ImpressionsDiscounting, Name: "ImpressionsDiscountingRecommender", Priority: 20, Kind: KindReRanking},

		{ID: UserWeightedUserProfile, Name: "UserWeightedUserProfileRecommender", Priority: 10, Kind: KindUserProfile},
		{ID: ItemWeightedUserProfile, Name: "ItemWeightedUserProfileRecommender", Priority: 10, Kind: KindUserProfile},
	}
}

func defaultTunings() []TuningParameters {
	return []TuningParameters{
		{
			ID:                     LeaveLastOutBayesian50x16,
			EvaluationStrategy:     LeaveLastKOut,
			ReproducibilitySeed:    1234567890,
			CutoffToOptimize:       20,
			Cutoffs:                []int{5, 10, 20, 30, 40, 50, 100},
			MetricToOptimize:       "NDCG",
			NumCases:               50,
			NumRandomStarts:        16,
			MaxTotalTime:           5 * 24 * time.Hour,
			EvaluateOnTest:         "last",
			ResumeFromSaved:        true,
			SaveMetadata:           true,
			SaveModel:              "best",
			TerminateOnMemoryError: true,
			KNNSimilarityTypes:     []string{"cosine", "dice", "jaccard", "asymmetric", "tversky"},
		},
	}
}
