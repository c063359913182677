package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopwatch(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	sw := NewStopwatch(time.Minute, clock)

	stopped, _ := sw.Stopped()
	assert.True(t, stopped, "a stopwatch that never started is stopped")

	sw.Start()
	clock.Advance(30 * time.Second)
	stopped, elapsed := sw.Stopped()
	assert.False(t, stopped)
	assert.Equal(t, -30*time.Second, elapsed)

	clock.Advance(30 * time.Second)
	stopped, elapsed = sw.Stopped()
	assert.True(t, stopped)
	assert.Equal(t, time.Duration(0), elapsed)
}

func TestTimedExecutor(t *testing.T) {
	clock := NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	runs := 0
	te := NewTimedExecutor(time.Hour, clock, func() { runs++ })

	assert.True(t, te.Execute())
	assert.False(t, te.Execute())
	clock.Advance(59 * time.Minute)
	assert.False(t, te.Execute())
	clock.Advance(time.Minute)
	assert.True(t, te.Execute())
	assert.Equal(t, 2, runs)
}

func TestProxyRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BrotherOwl", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"fine":true}`))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	proxy := NewProxy(map[string]string{"User-Agent": "BrotherOwl"}, []Restriction{{Requests: 10, Duration: time.Second}}, nil)
	ctx := context.Background()

	data, err := proxy.Request(ctx, server.URL+"/ok", "", true)
	require.NoError(t, err)
	assert.JSONEq(t, `{"fine":true}`, string(data))

	_, err = proxy.Request(ctx, server.URL+"/missing?key=secret", "secret", true)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, DATA_NOT_FOUND, statusErr.Code)
	assert.False(t, strings.Contains(err.Error(), "secret"))

	_, err = proxy.Request(ctx, server.URL+"/limited", "", true)
	require.Error(t, err)

	// After a 429 the non vital requests are turned away
	_, err = proxy.Request(ctx, server.URL+"/ok", "", false)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRateLimiterRejectsNonVitalOverBudget(t *testing.T) {
	rl := NewRateLimiter([]Restriction{{Requests: 2, Duration: time.Hour}}, nil)
	ctx := context.Background()

	assert.True(t, rl.Allowed(ctx, false))
	assert.True(t, rl.Allowed(ctx, false))
	assert.False(t, rl.Allowed(ctx, false))
}

func TestRateLimiterVitalHonoursContext(t *testing.T) {
	rl := NewRateLimiter([]Restriction{{Requests: 1, Duration: time.Hour}}, nil)
	assert.True(t, rl.Allowed(context.Background(), true))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.False(t, rl.Allowed(ctx, true))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "https://api.torn.com/user/1?key=REDACTED&selections=profile",
		redact("https://api.torn.com/user/1?selections=profile&key=abc", "abc"))
	assert.Equal(t, "https://example.com/a", redact("https://example.com/a", ""))
	assert.Equal(t, "https://www.tornstats.com/api/v2/REDACTED/spy/user/1",
		redact("https://www.tornstats.com/api/v2/TSKEY42/spy/user/1", "TSKEY42"))
}

func TestProxyErrorsNeverCarryTheKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	proxy := NewProxy(nil, []Restriction{{Requests: 10, Duration: time.Second}}, nil)
	ctx := context.Background()

	_, err := proxy.Request(ctx, server.URL+"/api/v2/SECRETKEY123/spy/user/1", "SECRETKEY123", true)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY123")
	assert.Contains(t, err.Error(), "403")

	// nothing listens any more: the transport error quotes the url
	server.Close()
	_, err = proxy.Request(ctx, server.URL+"/user/?selections=profile&key=SECRETKEY123", "SECRETKEY123", true)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY123")
	_, err = proxy.Request(ctx, server.URL+"/api/v2/SECRETKEY123/spy/user/1", "SECRETKEY123", true)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRETKEY123")
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan struct{}, 10)
	done := make(chan struct{})
	go func() {
		Scheduler{Name: "test", Interval: 5 * time.Millisecond, Task: func(context.Context) { runs <- struct{}{} }}.Run(ctx)
		close(done)
	}()

	<-runs
	<-runs
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
