// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are tried in order when no path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar names the environment variable holding the config path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration. An explicit path must exist; without one
// CONFIG_PATH and DefaultConfigPaths are tried.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// sliceConfigPaths are split on commas when set from a single string.
var sliceConfigPaths = []string{
	"experiment.benchmarks",
	"experiment.tunings",
	"experiment.knn_similarities",
	"search.args",
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variables (lower-cased) to config keys.
var envMappings = map[string]string{
	"data_dir":    "paths.data_dir",
	"results_dir": "paths.results_dir",

	"benchmarks":       "experiment.benchmarks",
	"tunings":          "experiment.tunings",
	"knn_similarities": "experiment.knn_similarities",
	"max_total_time":   "experiment.max_total_time",

	"queue_backend": "queue.backend",
	"queue_workers": "queue.workers",

	"nats_url":           "nats.url",
	"nats_embedded":      "nats.embedded_server",
	"nats_host":          "nats.host",
	"nats_port":          "nats.port",
	"nats_store_dir":     "nats.store_dir",
	"nats_max_memory":    "nats.max_memory",
	"nats_max_store":     "nats.max_store",
	"nats_stream":        "nats.stream_name",
	"nats_jobs_topic":    "nats.jobs_topic",
	"nats_results_topic": "nats.results_topic",
	"nats_queue_group":   "nats.queue_group",
	"nats_durable_name":  "nats.durable_name",
	"nats_ack_wait":      "nats.ack_wait",
	"nats_max_deliver":   "nats.max_deliver",
	"nats_publish_rate":  "nats.publish_rate",
	"nats_publish_burst": "nats.publish_burst",

	"search_runner":  "search.runner",
	"search_command": "search.command",
	"search_args":    "search.args",

	"ledger_path":        "ledger.path",
	"ledger_sync_writes": "ledger.sync_writes",

	"http_enabled":        "server.enabled",
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc returns "" for unmapped variables so koanf ignores them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
