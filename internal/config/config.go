// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package config

import "time"

// Config is the complete run configuration.
type Config struct {
	Paths      PathsConfig      `koanf:"paths"`
	Experiment ExperimentConfig `koanf:"experiment"`
	Queue      QueueConfig      `koanf:"queue"`
	NATS       NATSConfig       `koanf:"nats"`
	Search     SearchConfig     `koanf:"search"`
	Ledger     LedgerConfig     `koanf:"ledger"`
	Server     ServerConfig     `koanf:"server"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// PathsConfig locates datasets and results.
type PathsConfig struct {
	DataDir    string `koanf:"data_dir" validate:"required"`
	ResultsDir string `koanf:"results_dir" validate:"required"`
}

// ExperimentConfig selects and tunes the experiment cases.
type ExperimentConfig struct {
	Benchmarks []string `koanf:"benchmarks" validate:"required,min=1,dive,required"`
	Tunings    []string `koanf:"tunings" validate:"required,min=1,dive,required"`

	// Priorities override the catalog weights by identifier.
	BenchmarkPriorities   map[string]int `koanf:"benchmark_priorities" validate:"dive,gte=0"`
	RecommenderPriorities map[string]int `koanf:"recommender_priorities" validate:"dive,gte=0"`

	KNNSimilarities []string      `koanf:"knn_similarities"`
	MaxTotalTime    time.Duration `koanf:"max_total_time" validate:"gte=0"`
}

// QueueConfig selects the job queue backend.
type QueueConfig struct {
	Backend string `koanf:"backend" validate:"required,oneof=local nats"`

	// Workers is the number of local worker goroutines, also used by
	// --worker processes for the NATS subscriber count.
	Workers int `koanf:"workers" validate:"gte=1"`
}

// NATSConfig configures the nats queue backend.
type NATSConfig struct {
	URL            string `koanf:"url" validate:"required,url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	Host           string `koanf:"host"`
	Port           int    `koanf:"port" validate:"gte=0,lte=65535"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory" validate:"gte=0"`
	MaxStore       int64  `koanf:"max_store" validate:"gte=0"`

	StreamName   string `koanf:"stream_name" validate:"required"`
	JobsTopic    string `koanf:"jobs_topic" validate:"required"`
	ResultsTopic string `koanf:"results_topic" validate:"required"`
	QueueGroup   string `koanf:"queue_group" validate:"required"`
	DurableName  string `koanf:"durable_name" validate:"required"`

	AckWait       time.Duration `koanf:"ack_wait" validate:"gt=0"`
	MaxDeliver    int           `koanf:"max_deliver" validate:"gte=1"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait" validate:"gte=0"`
	CloseTimeout  time.Duration `koanf:"close_timeout" validate:"gte=0"`

	PublishRate  float64 `koanf:"publish_rate" validate:"gte=0"`
	PublishBurst int     `koanf:"publish_burst" validate:"gte=0"`
}

// SearchConfig selects the hyperparameter search runner.
type SearchConfig struct {
	Runner  string   `koanf:"runner" validate:"required,oneof=manifest command"`
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// LedgerConfig configures the BadgerDB job ledger.
type LedgerConfig struct {
	Path        string `koanf:"path" validate:"required"`
	SyncWrites  bool   `koanf:"sync_writes"`
	Compression bool   `koanf:"compression"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// SupervisorConfig configures the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig configures zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:    "./data",
			ResultsDir: "./results",
		},
		Experiment: ExperimentConfig{
			Benchmarks: []string{"ContentWiseImpressions", "MINDSmall", "FINNNoSlates"},
			Tunings:    []string{"LEAVE_LAST_OUT_BAYESIAN_50_16"},
		},
		Queue: QueueConfig{
			Backend: "local",
			Workers: 1,
		},
		NATS: NATSConfig{
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: false,
			Host:           "127.0.0.1",
			Port:           4222,
			StoreDir:       "./data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB
			StreamName:     "IMPRESSIONS",
			JobsTopic:      "impressions.jobs",
			ResultsTopic:   "impressions.outcomes",
			QueueGroup:     "impressions-workers",
			DurableName:    "impressions",
			AckWait:        30 * time.Minute,
			MaxDeliver:     1,
			MaxReconnects:  -1,
			ReconnectWait:  2 * time.Second,
			CloseTimeout:   30 * time.Second,
			PublishRate:    50,
			PublishBurst:   10,
		},
		Search: SearchConfig{
			Runner: "manifest",
		},
		Ledger: LedgerConfig{
			Path:       "./results/ledger",
			SyncWrites: true,
		},
		Server: ServerConfig{
			Enabled:         false,
			Host:            "127.0.0.1",
			Port:            9464,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}
