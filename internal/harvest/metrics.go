// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pdiddy/citegraph/internal/httputil"
)

const metricsNamespace = "citegraph"

// Work results recorded by Metrics.Works.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
	ResultSkipped   = "skipped"
)

// Metrics holds the harvest counters. A nil *Metrics records nothing.
type Metrics struct {
	// Requests counts attempts by endpoint and outcome
	// (ok, rate_limited, http_error, network_error, decode_error).
	Requests *prometheus.CounterVec

	// RateLimited counts HTTP 429 responses.
	RateLimited prometheus.Counter

	// Works counts identifiers by result (completed, failed, skipped).
	Works *prometheus.CounterVec

	// RequestDuration observes attempt latency in seconds.
	RequestDuration prometheus.Histogram
}

// NewMetrics registers the harvest metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "harvest",
			Name:      "requests_total",
			Help:      "API request attempts by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "harvest",
			Name:      "rate_limited_total",
			Help:      "HTTP 429 responses received",
		}),
		Works: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "harvest",
			Name:      "works_total",
			Help:      "Work identifiers processed by result",
		}, []string{"result"}),
		RequestDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "harvest",
			Name:      "request_duration_seconds",
			Help:      "API request attempt latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 12},
		}),
	}
}

func (m *Metrics) observeAttempt(endpoint string, a httputil.Attempt) {
	if m == nil {
		return
	}
	outcome := attemptOutcome(a)
	m.Requests.WithLabelValues(endpoint, outcome).Inc()
	m.RequestDuration.Observe(a.Elapsed.Seconds())
	if a.Status == http.StatusTooManyRequests {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) work(result string) {
	if m == nil {
		return
	}
	m.Works.WithLabelValues(result).Inc()
}

func attemptOutcome(a httputil.Attempt) string {
	switch {
	case a.Err == nil:
		return "ok"
	case errors.Is(a.Err, httputil.ErrRateLimited):
		return "rate_limited"
	case errors.Is(a.Err, httputil.ErrHTTPStatus):
		return "http_error"
	case errors.Is(a.Err, httputil.ErrDecode):
		return "decode_error"
	default:
		return "network_error"
	}
}
