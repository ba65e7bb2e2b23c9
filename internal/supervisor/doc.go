// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package supervisor runs the long-running services of an experiment process
under a suture v4 supervisor tree.

	RootSupervisor ("impressions")
	├── BrokerSupervisor ("broker-layer")
	│   └── BrokerService (embedded NATS, when nats.embedded_server is set)
	├── QueueSupervisor ("queue-layer")
	│   └── jobqueue.Worker (--worker mode, one per queue.workers)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (status API, when server.enabled is set)

The orchestrator itself is not supervised: a run plans and waits for its
jobs once and exits, while the tree keeps the status API and workers
available for the run's duration.

Supervisor events are logged through sutureslog, bridged to zerolog by
logging.NewSlogLogger:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.TreeConfig{
	    FailureThreshold: cfg.Supervisor.FailureThreshold,
	    ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	errCh := tree.ServeBackground(ctx)
*/
package supervisor
