// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package broker connects the nats queue backend to NATS JetStream.
//
// It starts the optional embedded nats-server, provisions the job stream
// and builds the Watermill publishers and subscribers that
// jobqueue.Dispatcher and jobqueue.Worker exchange jobs and outcomes
// through. Subscribers bind to the provisioned stream rather than
// auto-provisioning one per topic.
package broker

import (
	"fmt"
	"time"
)

// Config describes the broker connection and the job stream.
type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration

	StreamName   string
	JobsTopic    string
	ResultsTopic string
	MaxStore     int64

	// QueueGroup and DurableName identify the shared worker consumer.
	QueueGroup  string
	DurableName string

	AckWait          time.Duration
	MaxDeliver       int
	SubscribersCount int
	CloseTimeout     time.Duration
}

// DefaultConfig returns the defaults used by tests and the CLI.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       "IMPRESSIONS",
		JobsTopic:        "impressions.jobs",
		ResultsTopic:     "impressions.outcomes",
		QueueGroup:       "impressions-workers",
		DurableName:      "impressions",
		AckWait:          30 * time.Minute,
		MaxDeliver:       1,
		SubscribersCount: 1,
		CloseTimeout:     30 * time.Second,
	}
}

// Validate checks the fields every constructor relies on.
func (c *Config) Validate() error {
	switch {
	case c.URL == "":
		return fmt.Errorf("broker URL is required")
	case c.StreamName == "":
		return fmt.Errorf("stream name is required")
	case c.JobsTopic == "" || c.ResultsTopic == "":
		return fmt.Errorf("jobs and results topics are required")
	case c.JobsTopic == c.ResultsTopic:
		return fmt.Errorf("jobs and results topics must differ")
	}
	return nil
}
