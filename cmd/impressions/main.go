// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Command impressions runs the impressions-aware recommender evaluation.
//
// A run creates the result folders and then executes the phases selected
// by its flags in order: dataset creation, baselines, folded models, the
// impression-aware phases and the evaluation report. Phases that read the
// artifacts of an earlier phase wait for its jobs to finish.
//
//	impressions --include-baselines --include-folded --config config.yaml
//
// With queue.backend set to nats, jobs are published to NATS JetStream and
// executed by worker processes started with --worker:
//
//	impressions --worker --config config.yaml
//
// Configuration is layered by koanf: built-in defaults, then the YAML file
// (--config, CONFIG_PATH or ./config.yaml), then environment variables.
// The process exits with status 1 when a run fails.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/alexflint/go-arg"

	"github.com/tomtom215/impressions-evaluation/internal/config"
	"github.com/tomtom215/impressions-evaluation/internal/logging"
	"github.com/tomtom215/impressions-evaluation/internal/metrics"
	"github.com/tomtom215/impressions-evaluation/internal/orchestrator"
)

var version = "dev"

type args struct {
	CreateDatasets                      bool   `arg:"--create-datasets" help:"create the benchmark datasets and their impression features"`
	IncludeBaselines                    bool   `arg:"--include-baselines" help:"tune the baseline recommenders"`
	IncludeFolded                       bool   `arg:"--include-folded" help:"fold the tuned matrix factorization recommenders"`
	IncludeImpressionsTimeAware         bool   `arg:"--include-impressions-time-aware" help:"tune the time-aware impression heuristics"`
	IncludeImpressionsReRanking         bool   `arg:"--include-impressions-reranking" help:"tune the impression re-ranking plug-ins"`
	IncludeAblationImpressionsReRanking bool   `arg:"--include-ablation-impressions-reranking" help:"run the re-ranking ablation studies"`
	IncludeImpressionsProfile           bool   `arg:"--include-impressions-profile" help:"tune the impression user-profile recommenders"`
	PrintEvaluationResults              bool   `arg:"--print-evaluation-results" help:"write the evaluation report"`
	Config                              string `arg:"--config,env:CONFIG_PATH" help:"path to the YAML configuration file"`
	Worker                              bool   `arg:"--worker" help:"consume jobs from NATS instead of running an evaluation"`
	LogLevel                            string `arg:"--log-level" help:"override logging.level"`
}

func (args) Description() string {
	return "Impressions-aware recommender evaluation: plans tuning, folding and evaluation jobs and runs them on a local or NATS-backed queue."
}

func (args) Version() string {
	return "impressions " + version
}

func (a *args) flags() orchestrator.Flags {
	return orchestrator.Flags{
		CreateDatasets:                      a.CreateDatasets,
		IncludeBaselines:                    a.IncludeBaselines,
		IncludeFolded:                       a.IncludeFolded,
		IncludeImpressionsTimeAware:         a.IncludeImpressionsTimeAware,
		IncludeImpressionsReRanking:         a.IncludeImpressionsReRanking,
		IncludeAblationImpressionsReRanking: a.IncludeAblationImpressionsReRanking,
		IncludeImpressionsProfile:           a.IncludeImpressionsProfile,
		PrintEvaluationResults:              a.PrintEvaluationResults,
	}
}

func main() {
	var a args
	arg.MustParse(&a)

	if err := run(&a); err != nil {
		logging.Error().Err(err).Msg("Evaluation failed")
		os.Exit(1)
	}
}

func run(a *args) error {
	cfg, err := config.Load(a.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if a.LogLevel != "" {
		cfg.Logging.Level = a.LogLevel
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})
	metrics.SetAppInfo(version, runtime.Version())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, a.Worker, logging.Logger())
	if err != nil {
		return err
	}
	defer app.close()

	if a.Worker {
		return app.serveWorker(ctx)
	}

	flags := a.flags()
	if !flags.Any() {
		logging.Warn().Msg("No phase selected; only the result folders will be created")
	}
	err = app.runEvaluation(ctx, flags)
	if errors.Is(err, context.Canceled) {
		logging.Warn().Msg("Evaluation interrupted")
	}
	return err
}
