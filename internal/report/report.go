// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

// Package report aggregates the job ledger of a run into CSV summaries.
//
// Records are loaded into an in-memory DuckDB database. DuckDB groups the
// statuses per phase and writes the CSV files with COPY; duration
// statistics are computed with gonum.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/ledger"
)

// Output file names under the report directory.
const (
	Dir          = "report"
	SummaryFile  = "job_summary.csv"
	DurationFile = "job_durations.csv"
)

// Source lists the recorded jobs of a run.
type Source interface {
	List(ctx context.Context, status jobqueue.Status) ([]ledger.Record, error)
}

// PhaseDurations holds the duration statistics of one phase, in seconds.
type PhaseDurations struct {
	Phase  string
	Jobs   int
	Mean   float64
	StdDev float64
	Median float64
}

// Reporter writes the evaluation report.
type Reporter struct {
	source     Source
	resultsDir string
	logger     zerolog.Logger
}

// New creates a Reporter writing under <resultsDir>/report.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(source Source, resultsDir string, logger zerolog.Logger) *Reporter {
	return &Reporter{
		source:     source,
		resultsDir: resultsDir,
		logger:     logger.With().Str("component", "report").Logger(),
	}
}

// OutputDir returns the directory the CSV files are written to.
func (r *Reporter) OutputDir() string {
	return filepath.Join(r.resultsDir, Dir)
}

// Report loads the ledger, writes both CSV files and logs the per-phase
// statistics.
func (r *Reporter) Report(ctx context.Context) error {
	records, err := r.source.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}

	dir := r.OutputDir()
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is intentional for results
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	db, err := sql.Open("duckdb", ":memory:?autoinstall_known_extensions=false&autoload_known_extensions=false")
	if err != nil {
		return fmt.Errorf("failed to open DuckDB: %w", err)
	}
	defer db.Close() //nolint:errcheck // in-memory database

	if err := loadJobs(ctx, db, records); err != nil {
		return err
	}

	summaryPath := filepath.Join(dir, SummaryFile)
	if err := copyTo(ctx, db, `SELECT phase, status, COUNT(*) AS jobs
		FROM jobs
		GROUP BY phase, status
		ORDER BY phase, status`, summaryPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", SummaryFile, err)
	}

	durations, err := phaseDurations(ctx, db)
	if err != nil {
		return err
	}
	if err := storeDurations(ctx, db, durations); err != nil {
		return err
	}
	durationPath := filepath.Join(dir, DurationFile)
	if err := copyTo(ctx, db, `SELECT phase, jobs, mean_seconds, stddev_seconds, median_seconds
		FROM durations
		ORDER BY phase`, durationPath); err != nil {
		return fmt.Errorf("failed to write %s: %w", DurationFile, err)
	}

	for _, d := range durations {
		r.logger.Info().
			Str("phase", d.Phase).
			Int("jobs", d.Jobs).
			Float64("mean_seconds", d.Mean).
			Float64("stddev_seconds", d.StdDev).
			Float64("median_seconds", d.Median).
			Msg("Job durations")
	}
	r.logger.Info().
		Int("jobs", len(records)).
		Str("summary", summaryPath).
		Str("durations", durationPath).
		Msg("Evaluation report written")
	return nil
}

func loadJobs(ctx context.Context, db *sql.DB, records []ledger.Record) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE jobs (
		key VARCHAR,
		phase VARCHAR,
		method VARCHAR,
		status VARCHAR,
		priority BIGINT,
		worker VARCHAR,
		duration_seconds DOUBLE
	)`); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO jobs VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for i := range records {
		rec := &records[i]
		var duration sql.NullFloat64
		if rec.Status.Terminal() && !rec.StartedAt.IsZero() && !rec.FinishedAt.IsZero() {
			duration = sql.NullFloat64{Float64: rec.Duration().Seconds(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Key, rec.Phase, rec.Method, string(rec.Status), rec.Priority, rec.Worker, duration,
		); err != nil {
			return fmt.Errorf("failed to insert job %s: %w", rec.Key, err)
		}
	}
	return tx.Commit()
}

func phaseDurations(ctx context.Context, db *sql.DB) ([]PhaseDurations, error) {
	rows, err := db.QueryContext(ctx, `SELECT phase, duration_seconds
		FROM jobs
		WHERE duration_seconds IS NOT NULL
		ORDER BY phase, duration_seconds`)
	if err != nil {
		return nil, fmt.Errorf("failed to query durations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only query

	byPhase := make(map[string][]float64)
	var phases []string
	for rows.Next() {
		var phase string
		var seconds float64
		if err := rows.Scan(&phase, &seconds); err != nil {
			return nil, fmt.Errorf("failed to scan duration: %w", err)
		}
		if _, ok := byPhase[phase]; !ok {
			phases = append(phases, phase)
		}
		byPhase[phase] = append(byPhase[phase], seconds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read durations: %w", err)
	}

	out := make([]PhaseDurations, 0, len(phases))
	for _, phase := range phases {
		out = append(out, Durations(phase, byPhase[phase]))
	}
	return out, nil
}

// Durations computes the statistics of the ascending-sorted samples.
func Durations(phase string, sorted []float64) PhaseDurations {
	d := PhaseDurations{Phase: phase, Jobs: len(sorted)}
	if len(sorted) == 0 {
		return d
	}
	d.Mean = stat.Mean(sorted, nil)
	d.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	if math.IsNaN(d.StdDev) {
		d.StdDev = 0
	}
	return d
}

func storeDurations(ctx context.Context, db *sql.DB, durations []PhaseDurations) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE durations (
		phase VARCHAR,
		jobs INTEGER,
		mean_seconds DOUBLE,
		stddev_seconds DOUBLE,
		median_seconds DOUBLE
	)`); err != nil {
		return fmt.Errorf("failed to create durations table: %w", err)
	}
	for _, d := range durations {
		if _, err := db.ExecContext(ctx, `INSERT INTO durations VALUES (?, ?, ?, ?, ?)`,
			d.Phase, d.Jobs, d.Mean, d.StdDev, d.Median,
		); err != nil {
			return fmt.Errorf("failed to insert durations of %s: %w", d.Phase, err)
		}
	}
	return nil
}

// copyTo writes the result of query to a CSV file with a header row.
func copyTo(ctx context.Context, db *sql.DB, query, path string) error {
	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	_, err := db.ExecContext(ctx, fmt.Sprintf("COPY (%s) TO %s (HEADER, DELIMITER ',')", query, quoted))
	return err
}
