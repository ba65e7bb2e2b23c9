// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package jobqueue

import (
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/impressions-evaluation/internal/metrics"
)

// BreakerConfig configures the circuit breaker in front of the broker.
// Zero values fall back to the defaults noted on each field.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // half-open probes, default 1
	Interval         time.Duration // closed-state count reset, default 60s
	Timeout          time.Duration // open-state duration, default 30s
	FailureThreshold uint32        // consecutive failures to open, default 5
}

// NewBreaker creates a circuit breaker that logs and exports state changes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBreaker(cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[interface{}] {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	log := logger.With().Str("component", "circuit_breaker").Str("breaker", cfg.Name).Logger()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.Name).Set(float64(counts.ConsecutiveFailures))
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String())
			log.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}

	return gobreaker.NewCircuitBreaker[interface{}](settings)
}
