// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package logging provides the process-wide zerolog logger.
//
// Call Init once from main. Components derive their own logger with
// logger.With().Str("component", name) and receive it by value; the global
// helpers (Info, Warn, Error) exist for code without an injected logger.
//
// Adapters bridge libraries expecting other logging interfaces:
//
//   - NewSlogLogger: *slog.Logger for sutureslog supervisor events
//   - NewWatermillAdapter: watermill.LoggerAdapter for NATS pub/sub
//
// Context helpers carry request and correlation IDs from the status API
// into log lines (Ctx).
package logging
