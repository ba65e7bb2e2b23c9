// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/api"
	"github.com/tomtom215/impressions-evaluation/internal/artifacts"
	"github.com/tomtom215/impressions-evaluation/internal/broker"
	"github.com/tomtom215/impressions-evaluation/internal/config"
	"github.com/tomtom215/impressions-evaluation/internal/dataset"
	"github.com/tomtom215/impressions-evaluation/internal/experiment"
	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/ledger"
	"github.com/tomtom215/impressions-evaluation/internal/logging"
	"github.com/tomtom215/impressions-evaluation/internal/orchestrator"
	"github.com/tomtom215/impressions-evaluation/internal/phases"
	"github.com/tomtom215/impressions-evaluation/internal/report"
	"github.com/tomtom215/impressions-evaluation/internal/search"
	"github.com/tomtom215/impressions-evaluation/internal/supervisor"
	"github.com/tomtom215/impressions-evaluation/internal/supervisor/services"
)

var errWorkerBackend = errors.New("--worker requires queue.backend nats")

// app holds the components shared by evaluation and worker mode.
type app struct {
	cfg     *config.Config
	catalog *experiment.Catalog
	logger  zerolog.Logger

	ledger    *ledger.Ledger
	datasets  *dataset.Store
	artifacts *artifacts.Store
	registry  *jobqueue.Registry
	tree      *supervisor.SupervisorTree

	brokerCfg broker.Config
	closers   []io.Closer
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newApp(ctx context.Context, cfg *config.Config, worker bool, logger zerolog.Logger) (*app, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	if worker && cfg.Queue.Backend != "nats" {
		return nil, errWorkerBackend
	}

	a := &app{cfg: cfg, catalog: catalog, logger: logger}

	// Workers report through the broker; only the evaluating process owns
	// the ledger directory.
	if !worker {
		a.ledger, err = ledger.Open(ledger.Config{
			Path:        cfg.Ledger.Path,
			SyncWrites:  cfg.Ledger.SyncWrites,
			Compression: cfg.Ledger.Compression,
		}, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, a.ledger)
	}

	if a.datasets, err = dataset.NewStore(cfg.Paths.DataDir, nil, logger); err != nil {
		a.close()
		return nil, err
	}
	if a.artifacts, err = artifacts.NewStore(cfg.Paths.ResultsDir, logger); err != nil {
		a.close()
		return nil, err
	}

	a.registry = jobqueue.NewRegistry(logger)
	phases.Register(a.registry, &phases.Env{
		Catalog:    catalog,
		Datasets:   a.datasets,
		Artifacts:  a.artifacts,
		Folds:      a.artifacts,
		Runner:     a.searchRunner(),
		ResultsDir: cfg.Paths.ResultsDir,
		Logger:     logger,
	})

	a.tree, err = supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	if cfg.Queue.Backend == "nats" {
		if err := a.setupBroker(ctx); err != nil {
			a.close()
			return nil, err
		}
	}
	if cfg.Server.Enabled && !worker {
		a.addStatusServer()
	}
	return a, nil
}

func (a *app) searchRunner() search.Runner {
	if a.cfg.Search.Runner == "command" {
		return search.NewCommandRunner(a.cfg.Search.Command, a.cfg.Search.Args, a.logger)
	}
	return search.NewManifestRunner(a.logger)
}

// setupBroker starts the embedded server when configured and provisions the
// job stream.
func (a *app) setupBroker(ctx context.Context) error {
	n := a.cfg.NATS
	a.brokerCfg = broker.Config{
		URL:              n.URL,
		MaxReconnects:    n.MaxReconnects,
		ReconnectWait:    n.ReconnectWait,
		StreamName:       n.StreamName,
		JobsTopic:        n.JobsTopic,
		ResultsTopic:     n.ResultsTopic,
		MaxStore:         n.MaxStore,
		QueueGroup:       n.QueueGroup,
		DurableName:      n.DurableName,
		AckWait:          n.AckWait,
		MaxDeliver:       n.MaxDeliver,
		SubscribersCount: a.cfg.Queue.Workers,
		CloseTimeout:     n.CloseTimeout,
	}

	if n.EmbeddedServer {
		srv, err := broker.NewEmbeddedServer(&broker.ServerConfig{
			Host:      n.Host,
			Port:      n.Port,
			StoreDir:  n.StoreDir,
			MaxMemory: n.MaxMemory,
			MaxStore:  n.MaxStore,
		})
		if err != nil {
			return err
		}
		a.brokerCfg.URL = srv.ClientURL()
		a.tree.AddBrokerService(services.NewBrokerService(srv, a.cfg.Supervisor.ShutdownTimeout))
		a.logger.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
	}

	return broker.Provision(ctx, &a.brokerCfg)
}

func (a *app) addStatusServer() {
	s := a.cfg.Server
	routerCfg := api.DefaultRouterConfig()
	routerCfg.CORSAllowedOrigins = s.CORSOrigins
	routerCfg.RateLimitDisabled = s.RateLimitDisabled
	if s.RateLimitReqs > 0 {
		routerCfg.RateLimitRequests = s.RateLimitReqs
	}
	if s.RateLimitWindow > 0 {
		routerCfg.RateLimitWindow = s.RateLimitWindow
	}

	server := &http.Server{
		Addr:              net.JoinHostPort(s.Host, strconv.Itoa(s.Port)),
		Handler:           api.NewRouter(api.NewHandler(a.ledger), routerCfg),
		ReadHeaderTimeout: s.Timeout,
		ReadTimeout:       s.Timeout,
		WriteTimeout:      s.Timeout,
	}
	a.tree.AddAPIService(services.NewHTTPServerService(server, a.cfg.Supervisor.ShutdownTimeout))
	a.logger.Info().Str("addr", server.Addr).Msg("Status API enabled")
}

func (a *app) newPublisher() (message.Publisher, error) {
	pub, err := broker.NewPublisher(&a.brokerCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub)
	return pub, nil
}

// newQueue returns the queue of the configured backend. Job state changes
// are recorded in the ledger.
func (a *app) newQueue(ctx context.Context) (jobqueue.Queue, error) {
	if a.cfg.Queue.Backend != "nats" {
		return jobqueue.NewLocalQueue(a.registry, a.cfg.Queue.Workers, a.ledger, a.logger), nil
	}

	pub, err := a.newPublisher()
	if err != nil {
		return nil, err
	}
	sub, err := broker.NewResultsSubscriber(&a.brokerCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sub)

	return jobqueue.NewDispatcher(ctx, pub, sub, jobqueue.DispatcherConfig{
		JobsTopic:    a.brokerCfg.JobsTopic,
		ResultsTopic: a.brokerCfg.ResultsTopic,
		PublishRate:  a.cfg.NATS.PublishRate,
		PublishBurst: a.cfg.NATS.PublishBurst,
	}, a.ledger, a.logger)
}

// runEvaluation runs the selected phases while the supervisor tree serves
// the status API and the embedded broker.
func (a *app) runEvaluation(ctx context.Context, flags orchestrator.Flags) error {
	treeCtx, stopTree := context.WithCancel(ctx)
	treeDone := a.tree.ServeBackground(treeCtx)
	defer func() {
		stopTree()
		<-treeDone
	}()

	queue, err := a.newQueue(ctx)
	if err != nil {
		return err
	}

	cases := orchestrator.NewCaseSets(a.cfg.BenchmarkIDs(), a.cfg.TuningIDs())
	planner := phases.NewPlanner(a.catalog, a.artifacts, jobqueue.NewSubmitter(queue, a.logger), a.logger)

	orch, err := orchestrator.New(orchestrator.Config{
		Catalog:    a.catalog,
		Cases:      cases,
		Queue:      queue,
		Planner:    planner,
		Datasets:   a.datasets,
		Reporter:   report.New(a.ledger, a.cfg.Paths.ResultsDir, a.logger),
		ResultsDir: a.cfg.Paths.ResultsDir,
	}, a.logger)
	if err != nil {
		_ = queue.Close() //nolint:errcheck
		return err
	}
	return orch.Run(ctx, flags)
}

// serveWorker consumes jobs until ctx is canceled.
func (a *app) serveWorker(ctx context.Context) error {
	pub, err := a.newPublisher()
	if err != nil {
		return err
	}
	sub, err := broker.NewWorkerSubscriber(&a.brokerCfg, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, sub)

	a.tree.AddQueueService(jobqueue.NewWorker(sub, pub, a.registry, jobqueue.WorkerConfig{
		JobsTopic:    a.brokerCfg.JobsTopic,
		ResultsTopic: a.brokerCfg.ResultsTopic,
	}, a.logger))

	a.logger.Info().Int("subscribers", a.brokerCfg.SubscribersCount).Msg("Worker started")
	err = <-a.tree.ServeBackground(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// close releases resources in reverse order of creation.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Close failed")
		}
	}
	a.closers = nil
}
