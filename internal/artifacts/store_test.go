// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package artifacts

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
)

func mustRecommender(t *testing.T, id experiment.RecommenderID) experiment.Recommender {
	t.Helper()
	rec, err := experiment.DefaultCatalog().Recommender(id)
	if err != nil {
		t.Fatalf("Recommender(%s) failed: %v", id, err)
	}
	return rec
}

func TestName(t *testing.T) {
	itemKNN := mustRecommender(t, experiment.ItemKNN)
	pureSVD := mustRecommender(t, experiment.PureSVD)

	tests := []struct {
		name string
		req  LoadRequest
		want string
	}{
		{
			name: "baseline with similarity",
			req: LoadRequest{
				Benchmark: experiment.MINDSmall, Strategy: experiment.LeaveLastKOut,
				Recommender: itemKNN, Similarity: "cosine", ModelType: ModelTrain,
			},
			want: "baselines/MINDSmall/LEAVE_LAST_K_OUT/models/ItemKNNCFRecommender_cosine_TRAIN",
		},
		{
			name: "folded",
			req: LoadRequest{
				Benchmark: experiment.MINDSmall, Strategy: experiment.LeaveLastKOut,
				Recommender: pureSVD, ModelType: ModelTrainValidation, TryFolded: true,
			},
			want: "folded/MINDSmall/LEAVE_LAST_K_OUT/models/FoldedPureSVDRecommender_TRAIN_VALIDATION",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.req); got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	tr, err := store.LoadTrainedRecommender(context.Background(), LoadRequest{
		Benchmark: experiment.MINDSmall, Strategy: experiment.LeaveLastKOut,
		Recommender: mustRecommender(t, experiment.TopPopular), ModelType: ModelTrain,
	})
	if err != nil {
		t.Fatalf("LoadTrainedRecommender() error = %v, want nil", err)
	}
	if tr != nil {
		t.Errorf("LoadTrainedRecommender() = %+v, want nil", tr)
	}
}

func TestStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewStore(dir, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	rec := mustRecommender(t, experiment.RP3Beta)
	req := LoadRequest{
		Benchmark: experiment.FINNNoSlates, Strategy: experiment.LeaveLastKOut,
		Recommender: rec, ModelType: ModelTrainValidation,
	}
	in := &TrainedRecommender{
		RecommenderName: rec.Name,
		ModelType:       ModelTrainValidation,
		Hyperparameters: map[string]float64{"alpha": 0.5, "beta": 0.1, "topK": 100},
		TrainedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Save(ctx, req, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !strings.HasPrefix(store.Path(req), filepath.Join(dir, "baselines")) {
		t.Errorf("Path() = %q, want below %s/baselines", store.Path(req), dir)
	}

	out, err := store.LoadTrainedRecommender(ctx, req)
	if err != nil {
		t.Fatalf("LoadTrainedRecommender failed: %v", err)
	}
	if out == nil {
		t.Fatal("LoadTrainedRecommender() = nil, want artifact")
	}
	if out.RecommenderName != in.RecommenderName {
		t.Errorf("RecommenderName = %q, want %q", out.RecommenderName, in.RecommenderName)
	}
	if out.Hyperparameters["alpha"] != 0.5 {
		t.Errorf("Hyperparameters[alpha] = %v, want 0.5", out.Hyperparameters["alpha"])
	}
	if !out.TrainedAt.Equal(in.TrainedAt) {
		t.Errorf("TrainedAt = %v, want %v", out.TrainedAt, in.TrainedAt)
	}

	listed, err := store.List(ctx, BaselinesDir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 1 || listed[0].Attributes["recommender"] != rec.Name {
		t.Errorf("List() = %+v, want one %s artifact", listed, rec.Name)
	}
}

func TestStore_InvalidRequest(t *testing.T) {
	store, err := NewStore(t.TempDir(), zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	_, err = store.LoadTrainedRecommender(context.Background(), LoadRequest{Benchmark: experiment.MINDSmall})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("LoadTrainedRecommender() error = %v, want ErrInvalidRequest", err)
	}

	err = store.Save(context.Background(), LoadRequest{
		Benchmark: experiment.MINDSmall, Strategy: experiment.LeaveLastKOut,
		Recommender: mustRecommender(t, experiment.TopPopular), ModelType: ModelTrain,
	}, nil)
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Save(nil) error = %v, want ErrInvalidRequest", err)
	}
}
