// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

/*
Package config loads the evaluation run configuration.

Sources are layered with koanf, later layers winning:

 1. struct defaults (defaultConfig)
 2. a YAML file: the --config flag, CONFIG_PATH, or ./config.yaml
 3. environment variables listed in envMappings

Comma-separated environment values are split for slice fields. The result
is validated with go-playground/validator tags and cross-field checks.

Example config.yaml:

	paths:
	  data_dir: ./data
	  results_dir: ./results
	experiment:
	  benchmarks: [ContentWiseImpressions, MINDSmall]
	  knn_similarities: [cosine, jaccard]
	queue:
	  backend: nats
	nats:
	  embedded_server: true
	server:
	  enabled: true
	  port: 9464
*/
package config
