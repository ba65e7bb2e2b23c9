// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package experiment

import "fmt"

// Case is one (benchmark, recommender, tuning parameters) combination.
// Cases are comparable and identified by value.
type Case struct {
	Benchmark   BenchmarkID   `json:"benchmark"`
	Recommender RecommenderID `json:"recommender"`
	Tuning      TuningID      `json:"tuning"`
}

// String returns a compact representation used in logs.
func (c Case) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Benchmark, c.Recommender, c.Tuning)
}

// CaseSet is the ordered cross product of benchmarks, tuning parameters and
// recommenders. It is read-only once built.
type CaseSet struct {
	cases        []Case
	benchmarks   []BenchmarkID
	tunings      []TuningID
	recommenders []RecommenderID
}

// NewCaseSet enumerates benchmarks × tunings × recommenders, benchmark-major,
// then tuning, then recommender. Empty inputs yield an empty set.
func NewCaseSet(benchmarks []BenchmarkID, tunings []TuningID, recommenders []RecommenderID) *CaseSet {
	cs := &CaseSet{
		cases:        make([]Case, 0, len(benchmarks)*len(tunings)*len(recommenders)),
		benchmarks:   distinct(benchmarks),
		tunings:      distinct(tunings),
		recommenders: distinct(recommenders),
	}

	for _, b := range benchmarks {
		for _, t := range tunings {
			for _, r := range recommenders {
				cs.cases = append(cs.cases, Case{Benchmark: b, Recommender: r, Tuning: t})
			}
		}
	}

	return cs
}

// Cases returns a copy of the cases in enumeration order.
func (s *CaseSet) Cases() []Case {
	out := make([]Case, len(s.cases))
	copy(out, s.cases)
	return out
}

// Len returns the number of cases.
func (s *CaseSet) Len() int {
	return len(s.cases)
}

// Benchmarks returns the distinct benchmarks in first-seen order.
func (s *CaseSet) Benchmarks() []BenchmarkID {
	return append([]BenchmarkID(nil), s.benchmarks...)
}

// Tunings returns the distinct tuning identifiers in first-seen order.
func (s *CaseSet) Tunings() []TuningID {
	return append([]TuningID(nil), s.tunings...)
}

// Recommenders returns the distinct recommenders in first-seen order.
func (s *CaseSet) Recommenders() []RecommenderID {
	return append([]RecommenderID(nil), s.recommenders...)
}

// EvaluationStrategies returns the distinct evaluation strategies of the
// tuning parameters referenced by the set, in first-seen order.
func (s *CaseSet) EvaluationStrategies(cat *Catalog) ([]EvaluationStrategy, error) {
	seen := make(map[EvaluationStrategy]struct{}, len(s.tunings))
	out := make([]EvaluationStrategy, 0, len(s.tunings))
	for _, id := range s.tunings {
		t, err := cat.Tuning(id)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t.EvaluationStrategy]; ok {
			continue
		}
		seen[t.EvaluationStrategy] = struct{}{}
		out = append(out, t.EvaluationStrategy)
	}
	return out, nil
}

func distinct[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
