// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package phases implements the experiment phases of an evaluation run.
//
// Each phase has a submit side, a Planner method that turns case sets into
// jobs, and a worker side, a job body registered in a jobqueue.Registry.
// Only identifiers cross the queue: bodies reload datasets and trained
// baselines from disk before handing a request to the search runner.
//
// Phases that depend on trained baselines read them from the artifact
// store, so the orchestrator waits for the baselines and folded phases to
// drain before planning any of the downstream ones.
package phases
