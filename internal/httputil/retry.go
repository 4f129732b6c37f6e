// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the rate-limited, retrying HTTP client shared by
// the harvest and lookup stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"

	"github.com/pdiddy/citegraph/pkg/types"
)

var (
	// ErrHTTPStatus is matched by every non-200 StatusError.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	// ErrRateLimited is matched by a StatusError carrying HTTP 429.
	ErrRateLimited = errors.New("rate limited")

	// ErrDecode is returned when a 200 response body is not valid JSON.
	ErrDecode = errors.New("response is not valid JSON")
)

// StatusError records a non-200 response.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Code, e.URL)
}

// Unwrap lets errors.Is match ErrHTTPStatus, and ErrRateLimited for 429.
func (e *StatusError) Unwrap() []error {
	if e.Code == http.StatusTooManyRequests {
		return []error{ErrHTTPStatus, ErrRateLimited}
	}
	return []error{ErrHTTPStatus}
}

// Attempt describes one request made by Client.Get.
type Attempt struct {
	URL     string
	N       int // 0-based attempt number on this URL
	Status  int // 0 when no response was received
	Err     error
	Elapsed time.Duration
}

// Client issues GET requests with spacing between consecutive requests and
// bounded retries per URL. It is not safe for concurrent use.
type Client struct {
	http    *http.Client
	cfg     types.HTTPConfig
	limiter *rate.Limiter
	log     zerolog.Logger

	// wait blocks for d or until ctx is done. Tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient returns a Client configured from cfg. Zero fields take the
// defaults from types.HTTPConfig.WithDefaults.
func NewClient(cfg types.HTTPConfig, log zerolog.Logger) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(cfg.Delay), 1),
		log:     log,
		wait:    sleepContext,
	}
}

// Config returns the effective configuration.
func (c *Client) Config() types.HTTPConfig { return c.cfg }

// Get fetches url and returns the body of the first HTTP 200 response whose
// body is valid JSON. Up to MaxRetries attempts are made. After the k-th
// failed attempt the client waits BackoffBase×k, plus RateLimitCooldown when
// that attempt was a 429. A 429 on the last attempt still costs the cooldown
// before Get returns, so the caller's next request is never early.
// Every attempt first waits for the request limiter. observe, when non-nil,
// is called once per attempt. The last attempt's error is returned when all
// attempts fail; ctx errors are returned as-is.
func (c *Client) Get(ctx context.Context, url string, observe func(Attempt)) ([]byte, error) {
	var lastErr error
	for n := 0; n < c.cfg.MaxRetries; n++ {
		if n > 0 {
			backoff := c.cfg.BackoffBase * time.Duration(n)
			if errors.Is(lastErr, ErrRateLimited) {
				backoff += c.cfg.RateLimitCooldown
			}
			c.log.Debug().Str("url", url).Int("attempt", n+1).Dur("backoff", backoff).
				Err(lastErr).Msg("retrying request")
			if err := c.wait(ctx, backoff); err != nil {
				return nil, err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		start := time.Now()
		body, status, err := c.do(ctx, url)
		if observe != nil {
			observe(Attempt{URL: url, N: n, Status: status, Err: err, Elapsed: time.Since(start)})
		}
		if err == nil {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lastErr = err
	}
	if errors.Is(lastErr, ErrRateLimited) {
		c.log.Debug().Str("url", url).Dur("cooldown", c.cfg.RateLimitCooldown).Msg("rate limited on last attempt")
		if err := c.wait(ctx, c.cfg.RateLimitCooldown); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// do performs a single request.
func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading body from %s: %w", url, err)
	}
	if !json.Valid(body) {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", ErrDecode, url)
	}
	return body, resp.StatusCode, nil
}

func (c *Client) userAgent() string {
	if c.cfg.Email == "" {
		return c.cfg.UserAgent
	}
	return fmt.Sprintf("%s (mailto:%s)", c.cfg.UserAgent, c.cfg.Email)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
