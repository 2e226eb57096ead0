package httpx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edcrm/chat-import/internal/httpx"
)

func fastPolicy() httpx.RetryPolicy {
	p := httpx.DefaultRetryPolicy()
	p.BaseDelay = time.Millisecond
	p.MaxDelay = 5 * time.Millisecond
	return p
}

type recordingObserver struct {
	retries   []int
	success   int
	succeeded bool
	exhausted bool
	attempts  int
}

func (o *recordingObserver) OnRetry(attempt, maxAttempts int, err error) {
	o.retries = append(o.retries, attempt)
}

func (o *recordingObserver) OnSuccess(retries int) {
	o.succeeded = true
	o.success = retries
}

func (o *recordingObserver) OnExhausted(attempts int, err error) {
	o.exhausted = true
	o.attempts = attempts
}

func TestExecutorRetryBoundary(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"ok": "yes"})
	}))
	defer srv.Close()

	obs := &recordingObserver{}
	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()), httpx.WithObserver(obs))

	resp := exec.Do(context.Background(), httpx.Request{URL: srv.URL, Method: http.MethodGet})

	require.True(t, resp.Success)
	assert.Equal(t, 2, resp.RetryCount)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":"yes"}`, string(resp.Data))
	assert.Equal(t, []int{1, 2}, obs.retries)
	assert.True(t, obs.succeeded)
	assert.Equal(t, 2, obs.success)
	assert.False(t, obs.exhausted)
}

func TestExecutorClientErrorNotRetried(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad payload"}`))
	}))
	defer srv.Close()

	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()))

	resp := exec.Do(context.Background(), httpx.Request{URL: srv.URL})

	require.False(t, resp.Success)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "bad payload", resp.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecutorAuthFailFast(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()))

	resp := exec.Do(context.Background(), httpx.Request{URL: srv.URL, RequireAuth: true})

	require.False(t, resp.Success)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "no network call may be attempted without a credential")
}

func TestExecutorNoRetrySingleAttempt(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()))

	resp := exec.Do(context.Background(), httpx.Request{URL: srv.URL, NoRetry: true})

	require.False(t, resp.Success)
	assert.Equal(t, 0, resp.RetryCount)
	assert.Equal(t, "HTTP 503", resp.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecutorNetworkErrorExhaustsRetries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	obs := &recordingObserver{}
	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()), httpx.WithObserver(obs))

	resp := exec.Do(context.Background(), httpx.Request{URL: url})

	require.False(t, resp.Success)
	assert.Equal(t, 3, resp.RetryCount)
	assert.True(t, obs.exhausted)
	assert.Equal(t, 4, obs.attempts)
}

func TestExecutorAttachesBearerAndHeaders(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer session-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "42", r.Header.Get("X-Custom"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	exec := httpx.NewExecutor(zerolog.Nop(), httpx.WithRetryPolicy(fastPolicy()))

	resp := exec.Do(context.Background(), httpx.Request{
		URL:         srv.URL,
		Body:        map[string]string{"a": "b"},
		Headers:     map[string]string{"X-Custom": "42"},
		RequireAuth: true,
		Bearer:      "session-token",
	})

	require.True(t, resp.Success)
	assert.Nil(t, resp.Data, "non-JSON responses leave Data unset")
}
