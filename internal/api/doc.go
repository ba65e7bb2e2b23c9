// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package api serves the read-only status endpoints of an evaluation run.
//
// Routes:
//
//	GET /healthz               liveness
//	GET /metrics               Prometheus exposition
//	GET /api/v1/jobs?status=   ledger records, optionally filtered
//	GET /api/v1/jobs/summary   job counts per phase and status
//	GET /api/v1/jobs/{key}     one ledger record
package api
