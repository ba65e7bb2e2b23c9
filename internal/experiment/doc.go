// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package experiment defines the experiment cases of a run and the immutable
// catalog tables that describe benchmarks, recommenders and hyperparameter
// tuning parameters.
//
// A Case is the atomic unit of work: one benchmark, one recommender and one
// set of tuning parameters, identified by value. A CaseSet enumerates the
// cross product of three ordered identifier lists, benchmark-major, so that
// job submission order is reproducible between runs.
//
// The Catalog replaces global lookup tables. It is built once (usually via
// DefaultCatalog plus configuration overrides), frozen, and handed to the
// resolver and the experiment phases at construction time.
package experiment
