// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/citegraph/pkg/types"
)

// newTestClient returns a client whose waits are recorded instead of slept.
func newTestClient(t *testing.T) (*Client, *[]time.Duration) {
	t.Helper()
	c := NewClient(types.HTTPConfig{
		Delay:             time.Millisecond,
		BackoffBase:       1500 * time.Millisecond,
		RateLimitCooldown: 10 * time.Second,
	}, zerolog.Nop())
	var waits []time.Duration
	c.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return c, &waits
}

func TestGet_ImmediateSuccess(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"ok": true}`))
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	body, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"ok": true}`, string(body))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, *waits)
}

func TestGet_RetriesWithLinearBackoff(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second}, *waits)
}

func TestGet_RateLimitAddsCooldown(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, []time.Duration{11500 * time.Millisecond}, *waits)
}

func TestGet_ExhaustsAttempts(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	var attempts []Attempt
	_, err := c.Get(context.Background(), ts.URL, func(a Attempt) { attempts = append(attempts, a) })

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)

	assert.Equal(t, int32(types.DefaultMaxRetries), atomic.LoadInt32(&calls))
	require.Len(t, attempts, types.DefaultMaxRetries)
	for i, a := range attempts {
		assert.Equal(t, i, a.N)
		assert.Equal(t, http.StatusTooManyRequests, a.Status)
	}

	// Every 429 is followed by the cooldown, including the last one.
	assert.Equal(t, []time.Duration{
		11500 * time.Millisecond,
		13 * time.Second,
		10 * time.Second,
	}, *waits)
}

func TestGet_LastAttemptServerErrorHasNoTrailingWait(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []time.Duration{11500 * time.Millisecond, 13 * time.Second}, *waits)
}

func TestGet_InvalidJSONIsAFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer ts.Close()

	c, _ := newTestClient(t)
	_, err := c.Get(context.Background(), ts.URL, nil)
	assert.ErrorIs(t, err, ErrDecode)
	assert.NotErrorIs(t, err, ErrHTTPStatus)
}

func TestGet_ServerErrorIsNotRateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c, waits := newTestClient(t)
	_, err := c.Get(context.Background(), ts.URL, nil)
	assert.ErrorIs(t, err, ErrHTTPStatus)
	assert.NotErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3 * time.Second}, *waits)
}

func TestGet_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	// Real waits so the context expires during the cooldown.
	c := NewClient(types.HTTPConfig{Delay: time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, ts.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGet_SpacesRequests(t *testing.T) {
	var (
		mu     sync.Mutex
		stamps []time.Time
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{Delay: 50 * time.Millisecond}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), ts.URL, nil)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 40*time.Millisecond)
	}
}

func TestUserAgentCarriesContact(t *testing.T) {
	uaCh := make(chan string, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uaCh <- r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(types.HTTPConfig{Email: "me@example.org", Delay: time.Millisecond}, zerolog.Nop())
	_, err := c.Get(context.Background(), ts.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, types.DefaultUserAgent+" (mailto:me@example.org)", <-uaCh)
}
