// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package search

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/dataset"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

func testMatrix(t *testing.T) *dataset.Matrix {
	t.Helper()
	m, err := dataset.NewMatrix(3, 5, []int{0, 1, 2}, []int{1, 2, 4}, []float64{1, 1, 1})
	if err != nil {
		t.Fatalf("NewMatrix failed: %v", err)
	}
	return m
}

func testRequest(t *testing.T, dir string) Request {
	t.Helper()
	tuning, err := experiment.DefaultCatalog().Tuning(experiment.LeaveLastOutBayesian50x16)
	if err != nil {
		t.Fatalf("Tuning failed: %v", err)
	}
	space, strategy, err := RecommenderSpace(experiment.RP3Beta)
	if err != nil {
		t.Fatalf("RecommenderSpace failed: %v", err)
	}

	req := NewRequest(tuning, "RP3betaRecommender", experiment.MINDSmall)
	req.Strategy = strategy
	req.SearchSpace = space
	req.OutputFileNameRoot = "RP3betaRecommender"
	req.OutputFolderPath = dir
	req.URMValidation = testMatrix(t)
	req.URMTest = testMatrix(t)
	req.RecommenderArgs = RecommenderArgs{URMTrain: testMatrix(t), Seed: tuning.ReproducibilitySeed}
	req.RecommenderArgsLastTest = RecommenderArgs{URMTrain: testMatrix(t), Seed: tuning.ReproducibilitySeed}
	return req
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{"missing output root", func(r *Request) { r.OutputFileNameRoot = "" }},
		{"output root with separator", func(r *Request) { r.OutputFileNameRoot = "a/b" }},
		{"zero cases", func(r *Request) { r.NumCases = 0 }},
		{"more random starts than cases", func(r *Request) { r.NumRandomStarts = r.NumCases + 1 }},
		{"missing train matrix", func(r *Request) { r.RecommenderArgs.URMTrain = nil }},
		{"missing test matrix", func(r *Request) { r.URMTest = nil }},
		{"bad save model", func(r *Request) { r.SaveModel = "sometimes" }},
		{"bad dimension", func(r *Request) { r.SearchSpace = Space{"x": Real(0, 1, PriorLogUniform)} }},
	}

	dir := t.TempDir()
	valid := testRequest(t, dir)
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid request = %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testRequest(t, dir)
			tt.mutate(&req)
			if err := req.Validate(); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestImpressionsDiscountingSpace(t *testing.T) {
	full, err := ImpressionsDiscountingSpace(SpaceImpressionsDiscounting)
	if err != nil {
		t.Fatalf("ImpressionsDiscountingSpace failed: %v", err)
	}
	if len(full) != 12 {
		t.Errorf("full space has %d dimensions, want 12", len(full))
	}

	ablation, err := ImpressionsDiscountingSpace(SpaceAblationOnlyUIMFrequency)
	if err != nil {
		t.Fatalf("ImpressionsDiscountingSpace failed: %v", err)
	}
	if got := ablation["reg_uim_position"]; got.Kind != KindCategorical || got.Categories[0] != "0" {
		t.Errorf("ablation reg_uim_position = %+v, want fixed 0", got)
	}
	if got := ablation["reg_uim_frequency"]; got.Kind != KindReal {
		t.Errorf("ablation reg_uim_frequency kind = %s, want real", got.Kind)
	}

	tests := []struct {
		signal experiment.SignalAnalysisType
		want   string
	}{
		{experiment.SignalPositive, "1"},
		{experiment.SignalNegative, "-1"},
	}
	for _, tt := range tests {
		name := SignalAblationSpaceName(tt.signal)
		space, err := ImpressionsDiscountingSpace(name)
		if err != nil {
			t.Fatalf("ImpressionsDiscountingSpace(%s) failed: %v", name, err)
		}
		sign := space["sign_uim_frequency"]
		if len(sign.Categories) != 1 || sign.Categories[0] != tt.want {
			t.Errorf("%s sign_uim_frequency = %v, want [%s]", name, sign.Categories, tt.want)
		}
	}

	if _, err := ImpressionsDiscountingSpace("NOPE"); !errors.Is(err, ErrUnknownSpace) {
		t.Errorf("unknown space error = %v, want ErrUnknownSpace", err)
	}
	if full["sign_uim_frequency"].Categories[0] != "-1" {
		t.Error("Fix mutated the base space")
	}
}

func TestRecommenderSpace_AllCatalogRecommenders(t *testing.T) {
	ids := []experiment.RecommenderID{
		experiment.Random, experiment.TopPopular, experiment.UserKNN, experiment.ItemKNN,
		experiment.MFBPR, experiment.NMF, experiment.PureSVD, experiment.RP3Beta,
		experiment.SLIMElasticNet, experiment.SLIMBPR, experiment.LastImpressions,
		experiment.FrequencyRecency, experiment.Recency, experiment.Cycling,
		experiment.ImpressionsDiscounting, experiment.UserWeightedUserProfile,
		experiment.ItemWeightedUserProfile,
	}
	for _, id := range ids {
		space, strategy, err := RecommenderSpace(id)
		if err != nil {
			t.Errorf("RecommenderSpace(%s) error = %v", id, err)
			continue
		}
		if err := space.Validate(); err != nil {
			t.Errorf("RecommenderSpace(%s) invalid: %v", id, err)
		}
		if strategy == StrategySingleCase && len(space) != 0 {
			t.Errorf("RecommenderSpace(%s) single case with %d dimensions", id, len(space))
		}
	}
}

func TestManifestRunner_WritesManifest(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results", "baselines")
	runner := NewManifestRunner(zerolog.New(io.Discard))

	req := testRequest(t, dir)
	req.ResumeFromSaved = false
	if err := runner.Search(context.Background(), req); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	m, err := ReadManifest(ManifestPath(&req))
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if m.RecommenderName != "RP3betaRecommender" {
		t.Errorf("RecommenderName = %q, want RP3betaRecommender", m.RecommenderName)
	}
	if m.NumCases != req.NumCases || m.MaxTotalTime != req.MaxTotalTime {
		t.Errorf("manifest options = (%d, %v), want (%d, %v)", m.NumCases, m.MaxTotalTime, req.NumCases, req.MaxTotalTime)
	}
	if m.Shapes["urm_train"] != [2]int{3, 5} {
		t.Errorf("Shapes[urm_train] = %v, want [3 5]", m.Shapes["urm_train"])
	}
	if _, ok := m.SearchSpace["alpha"]; !ok {
		t.Error("manifest search space lacks alpha")
	}
}

func TestManifestRunner_ResumeKeepsExisting(t *testing.T) {
	dir := t.TempDir()
	runner := NewManifestRunner(zerolog.New(io.Discard))

	req := testRequest(t, dir)
	req.ResumeFromSaved = true
	path := ManifestPath(&req)
	if err := os.WriteFile(path, []byte(`{"recommender_name":"previous"}`), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := runner.Search(context.Background(), req); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	m, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if m.RecommenderName != "previous" {
		t.Errorf("RecommenderName = %q, want the saved manifest kept", m.RecommenderName)
	}
}

func TestManifestRunner_InvalidRequest(t *testing.T) {
	runner := NewManifestRunner(zerolog.New(io.Discard))
	req := testRequest(t, t.TempDir())
	req.OutputFileNameRoot = ""

	if err := runner.Search(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Search() error = %v, want ErrInvalidRequest", err)
	}
}

func TestCommandRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	tests := []struct {
		name    string
		script  string
		wantErr bool
	}{
		{"success", "test -f \"$0\"", false},
		{"failure", "exit 3", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewCommandRunner("sh", []string{"-c", tt.script}, zerolog.New(io.Discard))
			req := testRequest(t, t.TempDir())
			req.ResumeFromSaved = false

			err := runner.Search(context.Background(), req)
			if (err != nil) != tt.wantErr {
				t.Errorf("Search() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
