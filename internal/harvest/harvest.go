// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package harvest fetches per-work citation timelines from the scholarly
// graph API and records them in a resumable checkpoint ledger.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pdiddy/citegraph/internal/httputil"
	"github.com/pdiddy/citegraph/internal/timeline"
	"github.com/pdiddy/citegraph/pkg/types"
)

// ErrExhausted is returned by Fetch when every endpoint failed.
var ErrExhausted = errors.New("all endpoints exhausted")

// Result holds the outcome of a harvest run.
type Result struct {
	RunID     string
	Completed int
	Skipped   int
	Failed    int
}

// Total returns the number of identifiers processed.
func (r Result) Total() int {
	return r.Completed + r.Skipped + r.Failed
}

// HasFailures reports whether any identifier failed in this run.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Harvester runs the per-work fetch loop against a Ledger.
type Harvester struct {
	client    *httputil.Client
	ledger    *Ledger
	raw       *RawLog
	metrics   *Metrics
	endpoints []Endpoint
	log       zerolog.Logger
}

// New returns a Harvester. metrics may be nil.
func New(client *httputil.Client, ledger *Ledger, raw *RawLog, metrics *Metrics, log zerolog.Logger) *Harvester {
	return &Harvester{
		client:    client,
		ledger:    ledger,
		raw:       raw,
		metrics:   metrics,
		endpoints: Endpoints,
		log:       log,
	}
}

// Open prepares cfg.OutputDir, loads the ledger found there, and returns a
// Harvester writing next to it. reg may be nil to disable metrics.
func Open(cfg types.HarvestConfig, reg prometheus.Registerer, log zerolog.Logger) (*Harvester, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.OutputDir, err)
	}
	ledger, err := Load(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	var m *Metrics
	if reg != nil {
		m = NewMetrics(reg)
	}
	client := httputil.NewClient(cfg.HTTPConfig, log)
	raw := NewRawLog(filepath.Join(cfg.OutputDir, RawLogFile))
	return New(client, ledger, raw, m, log), nil
}

// Ledger returns the ledger the harvester records into.
func (h *Harvester) Ledger() *Ledger { return h.ledger }

// Run harvests every id not already in the ledger, in the given order.
// pubYears supplies publication years for timeline clipping; absent ids are
// unclipped. Per-work failures are recorded in the ledger and do not stop
// the run. Storage errors and context cancellation do; state committed
// before the error is kept.
func (h *Harvester) Run(ctx context.Context, ids []string, pubYears map[string]int) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	log := h.log.With().Str("run_id", res.RunID).Logger()

	completed, failed := h.ledger.Len()
	log.Info().Int("works", len(ids)).Int("completed", completed).Int("failed", failed).
		Msg("harvest starting")

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if h.ledger.Done(id) {
			res.Skipped++
			h.metrics.work(ResultSkipped)
			continue
		}

		wlog := log.With().Str("work_id", id).Logger()
		payload, endpoint, err := h.Fetch(ctx, id)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			reason := FailureReason(err)
			if err := h.ledger.MarkFailed(id, reason); err != nil {
				return res, fmt.Errorf("recording failure for %s: %w", id, err)
			}
			res.Failed++
			h.metrics.work(ResultFailed)
			wlog.Warn().Str("reason", reason).Msg("harvest failed")
			continue
		}

		if err := h.raw.Append(payload); err != nil {
			return res, fmt.Errorf("saving payload for %s: %w", id, err)
		}
		tl := timeline.Extract(payload, pubYears[id])
		if err := h.ledger.MarkComplete(id, tl); err != nil {
			return res, fmt.Errorf("recording %s: %w", id, err)
		}
		if err := h.ledger.Persist(); err != nil {
			return res, fmt.Errorf("persisting checkpoint after %s: %w", id, err)
		}
		res.Completed++
		h.metrics.work(ResultCompleted)
		wlog.Info().Str("endpoint", endpoint).Ints("years", tl.Years()).Int("total", tl.Total()).
			Msg("harvested")
	}

	log.Info().Int("completed", res.Completed).Int("skipped", res.Skipped).
		Int("failed", res.Failed).Msg("harvest finished")
	return res, nil
}

// Fetch tries each endpoint in order and returns the first valid payload
// together with the endpoint name. When all endpoints fail the error wraps
// ErrExhausted and the last failure.
func (h *Harvester) Fetch(ctx context.Context, id string) ([]byte, string, error) {
	cfg := h.client.Config()
	var lastErr error
	for _, ep := range h.endpoints {
		name := ep.Name
		body, err := h.client.Get(ctx, ep.URL(cfg.BaseURL, id, cfg.Email), func(a httputil.Attempt) {
			h.metrics.observeAttempt(name, a)
		})
		if err == nil {
			return body, name, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		h.log.Debug().Str("work_id", id).Str("endpoint", name).Err(err).Msg("endpoint failed")
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w for %s: %w", ErrExhausted, id, lastErr)
}

// FailureReason renders err as the text stored in the failure ledger:
// "http_error <status>", "decode_error <detail>" or "network_error <detail>".
func FailureReason(err error) string {
	var se *httputil.StatusError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se):
		return fmt.Sprintf("http_error %d", se.Code)
	case errors.Is(err, httputil.ErrDecode):
		return "decode_error " + rootMessage(err)
	default:
		return "network_error " + rootMessage(err)
	}
}

// rootMessage drops the ErrExhausted prefix so the ledger records only the
// last underlying failure.
func rootMessage(err error) string {
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 && errors.Is(errs[0], ErrExhausted) {
			return errs[len(errs)-1].Error()
		}
	}
	return err.Error()
}
