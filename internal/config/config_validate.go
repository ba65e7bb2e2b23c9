// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package config

import (
	"fmt"
	"strings"

	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/logging"
	"github.com/tomtom215/impressions-evaluation/internal/validation"
)

// Validate checks struct tags, then the rules spanning several fields.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if err := c.validateExperiment(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateExperiment resolves every identifier against the built-in catalog.
func (c *Config) validateExperiment() error {
	if _, err := c.Catalog(); err != nil {
		return err
	}
	cat := experiment.DefaultCatalog()
	for _, b := range c.Experiment.Benchmarks {
		if _, err := cat.Benchmark(experiment.BenchmarkID(b)); err != nil {
			return fmt.Errorf("experiment.benchmarks: %w", err)
		}
	}
	for _, t := range c.Experiment.Tunings {
		if _, err := cat.Tuning(experiment.TuningID(t)); err != nil {
			return fmt.Errorf("experiment.tunings: %w", err)
		}
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.Runner == "command" && c.Search.Command == "" {
		return fmt.Errorf("search.command is required when search.runner is command")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.Queue.Backend != "nats" {
		return nil
	}
	if c.NATS.JobsTopic == c.NATS.ResultsTopic {
		return fmt.Errorf("nats.jobs_topic and nats.results_topic must differ")
	}
	if c.NATS.EmbeddedServer && c.NATS.StoreDir == "" {
		return fmt.Errorf("nats.store_dir is required with the embedded server")
	}
	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	for _, v := range logging.ValidLevels {
		if level == v {
			return nil
		}
	}
	return fmt.Errorf("logging.level must be one of: %s", strings.Join(logging.ValidLevels, ", "))
}

// Catalog returns the built-in catalog with the configured overrides.
func (c *Config) Catalog() (*experiment.Catalog, error) {
	cat, err := experiment.DefaultCatalog().WithOverrides(experiment.Overrides{
		BenchmarkPriorities:   c.Experiment.BenchmarkPriorities,
		RecommenderPriorities: c.Experiment.RecommenderPriorities,
		KNNSimilarityTypes:    c.Experiment.KNNSimilarities,
		MaxTotalTime:          c.Experiment.MaxTotalTime,
	})
	if err != nil {
		return nil, fmt.Errorf("experiment overrides: %w", err)
	}
	return cat, nil
}

// BenchmarkIDs returns the configured benchmarks.
func (c *Config) BenchmarkIDs() []experiment.BenchmarkID {
	out := make([]experiment.BenchmarkID, len(c.Experiment.Benchmarks))
	for i, b := range c.Experiment.Benchmarks {
		out[i] = experiment.BenchmarkID(b)
	}
	return out
}

// TuningIDs returns the configured tuning parameter sets.
func (c *Config) TuningIDs() []experiment.TuningID {
	out := make([]experiment.TuningID, len(c.Experiment.Tunings))
	for i, t := range c.Experiment.Tunings {
		out[i] = experiment.TuningID(t)
	}
	return out
}
