// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package jobqueue submits experiment jobs and executes them on workers.

A Job carries only identifiers and scalars: a unique key, a priority, the
experiment phase, the handler method and JSON arguments. Workers resolve the
method in a Registry and run the handler, which re-derives every matrix and
trained model it needs.

# Queue Backends

LocalQueue keeps jobs in a priority heap and drains it with N goroutines in
this process. Dispatcher buffers jobs the same way and, on Wait, publishes
them in priority order to a watermill publisher (NATS JetStream in
production); Worker processes consume them with a queue group and publish an
Outcome per job on a results topic, which the Dispatcher collects.

Both backends implement Queue:

	Submit(ctx, job)  enqueue without waiting for execution
	Wait(ctx)         block until every submitted job finished
	Close()           release resources

# Outcomes

A handler returns nil when the search ran, an error wrapping ErrSkipped for
an early logged return, a fatal error (see IsFatal) when persisted state is
inconsistent, or any other error when the body failed. Failed and skipped
jobs never affect their siblings; a fatal outcome makes Wait return it so
the orchestrator halts before the next phase. Panics in handlers are
recovered and recorded as failures.
*/
package jobqueue
