// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// ErrBrokerStopped is returned when the embedded broker exits while the
// tree is still running. The server cannot be restarted in place.
var ErrBrokerStopped = fmt.Errorf("embedded broker stopped: %w", suture.ErrDoNotRestart)

// Broker is the lifecycle of broker.EmbeddedServer.
type Broker interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// BrokerService keeps an already started embedded broker alive while the
// tree runs and shuts it down when the tree stops.
type BrokerService struct {
	broker          Broker
	shutdownTimeout time.Duration
	checkInterval   time.Duration
}

// NewBrokerService wraps b. A non-positive shutdownTimeout uses the 10s
// default.
func NewBrokerService(b Broker, shutdownTimeout time.Duration) *BrokerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &BrokerService{
		broker:          b,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   5 * time.Second,
	}
}

// Serve implements suture.Service.
func (s *BrokerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.broker.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("broker shutdown failed: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.broker.IsRunning() {
				return ErrBrokerStopped
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *BrokerService) String() string {
	return "embedded-broker"
}
