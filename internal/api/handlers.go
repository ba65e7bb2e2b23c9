// Impressions Evaluation - Recommender Experiment Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/impressions-evaluation

package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/impressions-evaluation/internal/jobqueue"
	"github.com/tomtom215/impressions-evaluation/internal/ledger"
	"github.com/tomtom215/impressions-evaluation/internal/validation"
)

// JobStore is the read side of the job ledger.
type JobStore interface {
	Get(key string) (*ledger.Record, error)
	List(ctx context.Context, status jobqueue.Status) ([]ledger.Record, error)
	Summary(ctx context.Context) ([]ledger.PhaseSummary, error)
}

// jobsQuery holds the query parameters of GET /api/v1/jobs.
type jobsQuery struct {
	Status string `validate:"omitempty,jobstatus"`
}

// Handler serves the job endpoints.
type Handler struct {
	store JobStore
}

// NewHandler creates a Handler.
func NewHandler(store JobStore) *Handler {
	return &Handler{store: store}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondData(w, map[string]string{"status": "ok"}, 0)
}

// Jobs lists ledger records.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	q := jobsQuery{Status: r.URL.Query().Get("status")}
	if verr := validation.ValidateStruct(&q); verr != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, verr.Error(), nil)
		return
	}

	records, err := h.store.List(r.Context(), jobqueue.Status(q.Status))
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to list jobs", err)
		return
	}
	if records == nil {
		records = []ledger.Record{}
	}
	respondData(w, records, len(records))
}

// JobsSummary returns the per-phase counts.
func (h *Handler) JobsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.store.Summary(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to summarize jobs", err)
		return
	}
	if summary == nil {
		summary = []ledger.PhaseSummary{}
	}
	respondData(w, summary, len(summary))
}

// Job returns one record. Keys contain '|' so the parameter is unescaped.
func (h *Handler) Job(w http.ResponseWriter, r *http.Request) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil || key == "" {
		respondError(w, http.StatusBadRequest, CodeValidation, "invalid job key", nil)
		return
	}

	rec, err := h.store.Get(key)
	if errors.Is(err, ledger.ErrNotFound) {
		respondError(w, http.StatusNotFound, CodeNotFound, "job not found", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "failed to get job", err)
		return
	}
	respondData(w, rec, 1)
}
