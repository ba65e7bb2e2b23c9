// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package search

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ManifestSuffix is appended to the output file name root of a manifest.
const ManifestSuffix = "_manifest.json"

// Manifest is the JSON document handed to the optimizer.
type Manifest struct {
	Request

	// Shapes of the matrices the optimizer reloads from the dataset store.
	Shapes map[string][2]int `json:"shapes"`

	WrittenAt time.Time `json:"written_at"`
}

// ManifestPath returns where the manifest of req is written.
func ManifestPath(req *Request) string {
	return filepath.Join(req.OutputFolderPath, req.OutputFileNameRoot+ManifestSuffix)
}

func newManifest(req *Request, now time.Time) *Manifest {
	shapes := map[string][2]int{
		"urm_validation": req.URMValidation.Shape(),
		"urm_test":       req.URMTest.Shape(),
		"urm_train":      req.RecommenderArgs.URMTrain.Shape(),
		"urm_train_last": req.RecommenderArgsLastTest.URMTrain.Shape(),
	}
	if f := req.RecommenderArgs.Features; f != nil && f.Frequency != nil {
		shapes["uim_frequency"] = f.Frequency.Shape()
	}
	return &Manifest{Request: *req, Shapes: shapes, WrittenAt: now.UTC()}
}

// ManifestRunner writes each search as a JSON manifest into its output folder.
type ManifestRunner struct {
	logger zerolog.Logger
	now    func() time.Time
}

// NewManifestRunner creates a ManifestRunner.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewManifestRunner(logger zerolog.Logger) *ManifestRunner {
	return &ManifestRunner{
		logger: logger.With().Str("component", "manifest_runner").Logger(),
		now:    time.Now,
	}
}

// Search implements Runner.
func (r *ManifestRunner) Search(ctx context.Context, req Request) error {
	_, err := r.write(ctx, &req)
	return err
}

func (r *ManifestRunner) write(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	path := ManifestPath(req)
	if req.ResumeFromSaved {
		if _, err := os.Stat(path); err == nil {
			r.logger.Info().
				Str("manifest", path).
				Msg("Resuming from saved manifest")
			return path, nil
		}
	}

	if err := os.MkdirAll(req.OutputFolderPath, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for experiment outputs
		return "", fmt.Errorf("failed to create output folder %s: %w", req.OutputFolderPath, err)
	}

	data, err := json.MarshalIndent(newManifest(req, r.now()), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil { //nolint:gosec // 0640 is acceptable for experiment outputs
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to rename manifest: %w", err)
	}

	r.logger.Info().
		Str("recommender", req.RecommenderName).
		Str("benchmark", req.Benchmark).
		Str("strategy", string(req.Strategy)).
		Int("dimensions", len(req.SearchSpace)).
		Str("manifest", path).
		Msg("Hyperparameter search prepared")

	return path, nil
}

// ReadManifest decodes a manifest written by ManifestRunner.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the runner's own output folder
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}
	return &m, nil
}

// CommandRunner writes the manifest and runs an optimizer command on it.
// The manifest path is appended as the last argument.
type CommandRunner struct {
	manifests *ManifestRunner
	command   string
	args      []string
	logger    zerolog.Logger
}

// NewCommandRunner creates a CommandRunner for the given optimizer command.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCommandRunner(command string, args []string, logger zerolog.Logger) *CommandRunner {
	return &CommandRunner{
		manifests: NewManifestRunner(logger),
		command:   command,
		args:      append([]string(nil), args...),
		logger:    logger.With().Str("component", "command_runner").Logger(),
	}
}

// Search implements Runner. The optimizer owns its time budget; the context
// only stops it when the worker shuts down.
func (r *CommandRunner) Search(ctx context.Context, req Request) error {
	path, err := r.manifests.write(ctx, &req)
	if err != nil {
		return err
	}

	args := append(append([]string(nil), r.args...), path)
	cmd := exec.CommandContext(ctx, r.command, args...) //nolint:gosec // command comes from operator configuration
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Run(); err != nil {
		r.logger.Error().
			Err(err).
			Str("command", r.command).
			Str("manifest", path).
			Str("output", tail(output.String(), 2048)).
			Msg("Optimizer failed")
		return fmt.Errorf("optimizer %s failed on %s: %w", r.command, path, err)
	}

	r.logger.Info().
		Str("command", r.command).
		Str("manifest", path).
		Dur("duration", time.Since(start)).
		Msg("Optimizer finished")
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
