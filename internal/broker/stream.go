// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package broker

import (
	"context"
	"errors"
	"fmt"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStreamContext is the subset of jetstream.JetStream used to provision
// the job stream.
type JetStreamContext interface {
	Stream(ctx context.Context, name string) (jetstream.Stream, error)
	CreateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	UpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
}

// streamConfig keeps jobs until a worker acknowledges them and outcomes
// until the dispatcher does.
func streamConfig(cfg *Config) jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:      cfg.StreamName,
		Subjects:  []string{cfg.JobsTopic, cfg.ResultsTopic},
		Retention: jetstream.LimitsPolicy,
		MaxBytes:  maxBytes(cfg.MaxStore),
		Storage:   jetstream.FileStorage,
		Discard:   jetstream.DiscardOld,
	}
}

func maxBytes(n int64) int64 {
	if n <= 0 {
		return -1
	}
	return n
}

// EnsureStream creates the job stream or updates it to the current config.
func EnsureStream(ctx context.Context, js JetStreamContext, cfg *Config) error {
	sc := streamConfig(cfg)

	_, err := js.Stream(ctx, cfg.StreamName)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.StreamName, err)
		}
		return nil
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.StreamName, err)
		}
		return nil
	default:
		return fmt.Errorf("check stream %s: %w", cfg.StreamName, err)
	}
}

// Provision connects to cfg.URL and ensures the job stream exists.
func Provision(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	nc, err := natsgo.Connect(cfg.URL, natsgo.Name("impressions-provisioner"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	return EnsureStream(ctx, js, cfg)
}
