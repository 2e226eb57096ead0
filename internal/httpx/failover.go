package httpx

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Backend identifies which service actually served a request.
type Backend string

const (
	BackendPrimary   Backend = "primary"
	BackendSecondary Backend = "secondary"
)

// FailoverResponse is the executor envelope tagged with the backend that
// produced it.
type FailoverResponse struct {
	Response
	Source Backend
}

// FailoverConfig wires the two backends. The primary is reached with a static
// API key; the secondary with the caller's own bearer credential. The two
// credentials are never cross-sent: each backend has independently issued
// auth.
type FailoverConfig struct {
	PrimaryBaseURL    string
	PrimaryAPIKey     string
	SecondaryBaseURL  string
	PrimaryRetries    int
	PrimaryRetryDelay time.Duration
	FallbackEnabled   bool
}

// FailoverClient tries the primary backend first on every call and falls back
// to the secondary only on transient failure. There is no sticky routing: the
// last-successful-backend field is diagnostics, not a circuit breaker.
type FailoverClient struct {
	exec   *Executor
	cfg    FailoverConfig
	logger zerolog.Logger

	mu             sync.Mutex
	lastSuccessful Backend
}

func NewFailoverClient(exec *Executor, cfg FailoverConfig, logger zerolog.Logger) *FailoverClient {
	if cfg.PrimaryRetries < 0 {
		cfg.PrimaryRetries = 0
	}
	if cfg.PrimaryRetryDelay <= 0 {
		cfg.PrimaryRetryDelay = 500 * time.Millisecond
	}
	return &FailoverClient{exec: exec, cfg: cfg, logger: logger}
}

// Call posts body to the named endpoint. bearer is the caller's session
// credential, used only on the secondary path. Both paths run the executor
// with its own retries disabled: the primary has this client's outer loop and
// the secondary must fail fast because the caller already waited through the
// primary's attempts.
func (c *FailoverClient) Call(ctx context.Context, endpoint string, body any, bearer string) FailoverResponse {
	var last Response
	for attempt := 0; attempt <= c.cfg.PrimaryRetries; attempt++ {
		last = c.exec.Do(ctx, Request{
			URL:     c.cfg.PrimaryBaseURL + "/" + endpoint,
			Method:  http.MethodPost,
			Body:    body,
			Headers: map[string]string{"X-Api-Key": c.cfg.PrimaryAPIKey},
			NoRetry: true,
		})
		if last.Success {
			c.record(BackendPrimary)
			return FailoverResponse{Response: last, Source: BackendPrimary}
		}
		if isDefinitiveClientError(last.Status) {
			// The request itself is invalid; neither a retry nor the
			// secondary will change the answer.
			return FailoverResponse{Response: last, Source: BackendPrimary}
		}
		if attempt < c.cfg.PrimaryRetries {
			if !sleepWithContext(ctx, c.cfg.PrimaryRetryDelay) {
				return FailoverResponse{Response: last, Source: BackendPrimary}
			}
		}
	}

	if !c.cfg.FallbackEnabled {
		return FailoverResponse{Response: last, Source: BackendPrimary}
	}

	c.logger.Warn().
		Str("endpoint", endpoint).
		Int("primary_status", last.Status).
		Str("primary_error", last.Error).
		Msg("primary backend failed, falling back")

	resp := c.exec.Do(ctx, Request{
		URL:         c.cfg.SecondaryBaseURL + "/" + endpoint,
		Method:      http.MethodPost,
		Body:        body,
		RequireAuth: true,
		Bearer:      bearer,
		NoRetry:     true,
	})
	if resp.Success {
		c.record(BackendSecondary)
	}
	return FailoverResponse{Response: resp, Source: BackendSecondary}
}

// LastSuccessfulBackend reports which backend most recently served a request,
// or "" before the first success.
func (c *FailoverClient) LastSuccessfulBackend() Backend {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccessful
}

func (c *FailoverClient) record(b Backend) {
	c.mu.Lock()
	c.lastSuccessful = b
	c.mu.Unlock()
}

// isDefinitiveClientError reports 4xx statuses that are authoritative: the
// failure is the caller's, so no fallback. 408 and 429 stay transient.
func isDefinitiveClientError(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	return status != http.StatusRequestTimeout && status != http.StatusTooManyRequests
}
