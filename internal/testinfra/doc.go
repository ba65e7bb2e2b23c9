// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package testinfra runs the container-backed infrastructure used by
// integration tests.
//
// Tests in this package and its users are built only with the integration
// tag and skip themselves when no Docker daemon is reachable:
//
//	go test -tags integration ./internal/testinfra/...
//
// # NATS Container
//
// NATSContainer starts a JetStream-enabled nats-server so the nats queue
// backend can be exercised against a real broker instead of the embedded
// one:
//
//	natsC, err := testinfra.NewNATSContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, natsC)
//
//	cfg := broker.DefaultConfig(natsC.URL)
//
// The first run pulls the image; later runs use the local cache.
package testinfra
