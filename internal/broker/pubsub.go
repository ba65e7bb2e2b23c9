// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package broker

import (
	"fmt"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/impressions-evaluation/internal/logging"
)

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func connectOptions(cfg *Config, name string, logger zerolog.Logger) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name(name),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
}

// NewPublisher returns a JetStream publisher. Message IDs are tracked so
// the stream deduplicates republished jobs by key.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPublisher(cfg *Config, logger zerolog.Logger) (message.Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "nats_publisher").Logger()

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: connectOptions(cfg, "impressions-publisher", logger),
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}
	return pub, nil
}

// NewWorkerSubscriber returns the subscriber --worker processes consume
// jobs with. All workers share one durable consumer through the queue
// group, so every job is delivered to a single worker.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewWorkerSubscriber(cfg *Config, logger zerolog.Logger) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.BindStream(cfg.StreamName),
		natsgo.DeliverAll(),
		natsgo.AckExplicit(),
		natsgo.AckWait(cfg.AckWait),
		natsgo.MaxDeliver(cfg.MaxDeliver),
		natsgo.MaxAckPending(max(cfg.SubscribersCount, 1)),
	}
	return newSubscriber(cfg, cfg.QueueGroup, cfg.DurableName, subOpts, "nats_worker_subscriber", logger)
}

// NewResultsSubscriber returns the subscriber the dispatcher reads
// outcomes with. Outcomes of earlier runs are not replayed.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewResultsSubscriber(cfg *Config, logger zerolog.Logger) (message.Subscriber, error) {
	subOpts := []natsgo.SubOpt{
		natsgo.BindStream(cfg.StreamName),
		natsgo.DeliverNew(),
		natsgo.AckExplicit(),
	}
	return newSubscriber(cfg, "", "", subOpts, "nats_results_subscriber", logger)
}

//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newSubscriber(cfg *Config, queueGroup, durable string, subOpts []natsgo.SubOpt, component string, logger zerolog.Logger) (message.Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", component).Logger()

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: queueGroup,
		SubscribersCount: max(cfg.SubscribersCount, 1),
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      connectOptions(cfg, "impressions-"+component, logger),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:         false,
			AutoProvision:    false,
			AckAsync:         false,
			SubscribeOptions: subOpts,
			DurablePrefix:    durable,
		},
	}, logging.NewWatermillAdapter(logger))
	if err != nil {
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}
	return sub, nil
}
