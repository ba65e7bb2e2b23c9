// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package phases

import (
	"fmt"
	"path/filepath"

	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

// Phase names an experiment phase.
type Phase string

// Experiment phases in execution order.
const (
	Baselines      Phase = "baselines"
	Folded         Phase = "folded"
	TimeAware      Phase = "time_aware"
	ReRanking      Phase = "re_ranking"
	UserProfiles   Phase = "user_profiles"
	Ablation       Phase = "ablation"
	SignalAblation Phase = "signal_ablation"
)

// All returns every phase in execution order.
func All() []Phase {
	return []Phase{Baselines, Folded, TimeAware, ReRanking, UserProfiles, Ablation, SignalAblation}
}

// Method returns the job method that runs the body of the phase.
func (p Phase) Method() string {
	switch p {
	case Baselines:
		return "run_baselines_hyper_parameter_tuning"
	case Folded:
		return "run_baselines_folded_evaluation"
	case TimeAware:
		return "run_impressions_heuristics_hyper_parameter_tuning"
	case ReRanking:
		return "run_impressions_re_ranking_hyper_parameter_tuning"
	case UserProfiles:
		return "run_impressions_user_profiles_hyper_parameter_tuning"
	case Ablation:
		return "run_ablation_impressions_re_ranking_hyper_parameter_tuning"
	case SignalAblation:
		return "run_signal_analysis_ablation_impressions_re_ranking_hyper_parameter_tuning"
	default:
		return "run_" + string(p)
	}
}

// ResultsDir returns the directory below the results root the phase writes
// into. The ablation studies share the re-ranking directory and differ by
// file name prefix.
func (p Phase) ResultsDir() string {
	switch p {
	case TimeAware:
		return "heuristics"
	case Ablation, SignalAblation:
		return string(ReRanking)
	default:
		return string(p)
	}
}

// UsesFoldMultiplier reports whether job priorities of the phase are scaled
// by the fold variant.
func (p Phase) UsesFoldMultiplier() bool {
	return p == Ablation || p == SignalAblation
}

// BaseDir returns "<results>/<phase dir>/<benchmark>/<evaluation strategy>".
func BaseDir(resultsDir string, p Phase, b experiment.BenchmarkID, s experiment.EvaluationStrategy) string {
	return filepath.Join(resultsDir, p.ResultsDir(), string(b), string(s))
}

// ExperimentsDir returns the folder hyperparameter searches of the phase
// write into.
func ExperimentsDir(resultsDir string, p Phase, b experiment.BenchmarkID, s experiment.EvaluationStrategy) string {
	return filepath.Join(BaseDir(resultsDir, p, b, s), "experiments")
}

// Folders returns every folder a run may write into, without duplicates.
func Folders(resultsDir string, benchmarks []experiment.BenchmarkID, strategies []experiment.EvaluationStrategy) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(dir string) {
		if _, ok := seen[dir]; ok {
			return
		}
		seen[dir] = struct{}{}
		out = append(out, dir)
	}

	for _, p := range All() {
		for _, b := range benchmarks {
			for _, s := range strategies {
				add(BaseDir(resultsDir, p, b, s))
				add(ExperimentsDir(resultsDir, p, b, s))
				if p == Baselines || p == Folded {
					add(filepath.Join(BaseDir(resultsDir, p, b, s), artifacts.ModelsDir))
				}
			}
		}
	}
	return out
}

// Args are the job arguments shared by every phase.
type Args struct {
	Case experiment.Case `json:"case"`

	// Baseline is set for phases that wrap a trained baseline.
	Baseline *experiment.Case `json:"baseline,omitempty"`

	Similarity string                        `json:"similarity,omitempty"`
	TryFolded  bool                          `json:"try_folded,omitempty"`
	Signal     experiment.SignalAnalysisType `json:"signal,omitempty"`
}

// similarityPart renders a similarity for job keys and info.
func similarityPart(similarity string) string {
	if similarity == "" {
		return "none"
	}
	return similarity
}

func boolPart(b bool) string {
	return fmt.Sprintf("%t", b)
}
