// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package search

import (
	"fmt"
	"sort"
)

// DimensionKind is the type of a search-space dimension.
type DimensionKind string

// Dimension kinds.
const (
	KindCategorical DimensionKind = "categorical"
	KindInteger     DimensionKind = "integer"
	KindReal        DimensionKind = "real"
)

// Prior is the sampling distribution of a numeric dimension.
type Prior string

// Priors.
const (
	PriorUniform    Prior = "uniform"
	PriorLogUniform Prior = "log-uniform"
)

// Dimension is one hyperparameter of a search space.
type Dimension struct {
	Kind       DimensionKind `json:"kind"`
	Low        float64       `json:"low,omitempty"`
	High       float64       `json:"high,omitempty"`
	Prior      Prior         `json:"prior,omitempty"`
	Categories []string      `json:"categories,omitempty"`
}

// Categorical returns a categorical dimension.
func Categorical(categories ...string) Dimension {
	return Dimension{Kind: KindCategorical, Categories: categories}
}

// Integer returns a uniform integer dimension over [low, high].
func Integer(low, high int) Dimension {
	return Dimension{Kind: KindInteger, Low: float64(low), High: float64(high), Prior: PriorUniform}
}

// Real returns a real dimension over [low, high].
func Real(low, high float64, prior Prior) Dimension {
	return Dimension{Kind: KindReal, Low: low, High: high, Prior: prior}
}

// Validate checks the bounds of a dimension.
func (d Dimension) Validate() error {
	switch d.Kind {
	case KindCategorical:
		if len(d.Categories) == 0 {
			return fmt.Errorf("categorical dimension without categories")
		}
	case KindInteger, KindReal:
		if d.Low > d.High {
			return fmt.Errorf("low %v above high %v", d.Low, d.High)
		}
		if d.Prior == PriorLogUniform && d.Low <= 0 {
			return fmt.Errorf("log-uniform prior with non-positive low %v", d.Low)
		}
	default:
		return fmt.Errorf("unknown dimension kind %q", d.Kind)
	}
	return nil
}

// Space maps hyperparameter names to dimensions.
type Space map[string]Dimension

// Names returns the hyperparameter names in sorted order.
func (s Space) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks every dimension.
func (s Space) Validate() error {
	for _, name := range s.Names() {
		if err := s[name].Validate(); err != nil {
			return fmt.Errorf("dimension %s: %w", name, err)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (s Space) Clone() Space {
	out := make(Space, len(s))
	for name, d := range s {
		d.Categories = append([]string(nil), d.Categories...)
		out[name] = d
	}
	return out
}

// Fix replaces the named dimensions by single-category dimensions.
func (s Space) Fix(values map[string]string) Space {
	out := s.Clone()
	for name, value := range values {
		out[name] = Categorical(value)
	}
	return out
}
