// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package services adapts long-running components to suture's Serve pattern.

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps the status API server. BrokerService owns the
lifetime of the embedded NATS server. Job workers (jobqueue.Worker)
implement suture.Service directly and need no wrapper.

Every wrapper returns ctx.Err() after a graceful stop and a wrapped error
when its component fails, so the supervisor can tell a shutdown from a
crash.
*/
package services
