// Package httpx issues authenticated HTTP calls with exponential-backoff
// retries and provides a dual-backend failover client on top of them.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Response is the normalized envelope every call resolves to. It is never
// accompanied by an error: transport failures and non-2xx statuses are
// reported through Success/Error/Status so callers handle one shape.
type Response struct {
	Success    bool
	Data       json.RawMessage
	Error      string
	Status     int
	RetryCount int
}

// Request describes one logical call. URL must be absolute. When RequireAuth
// is set and neither Bearer nor the executor's token source yields a
// credential, the call fails fast with status 401 and no network attempt.
type Request struct {
	URL         string
	Method      string
	Body        any
	Headers     map[string]string
	RequireAuth bool
	Bearer      string
	NoRetry     bool
}

// RetryPolicy controls the executor's backoff loop.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	RetryableStatuses []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          10 * time.Second,
		RetryableStatuses: []int{408, 429, 500, 502, 503, 504},
	}
}

func (p RetryPolicy) retryable(status int) bool {
	for _, s := range p.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// delay for the n-th retry (1-based): base doubled per attempt, capped.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryObserver receives telemetry hooks from the retry loop. Implementations
// must not alter behavior; all three methods may be called from the calling
// goroutine only.
type RetryObserver interface {
	OnRetry(attempt, maxAttempts int, err error)
	OnSuccess(retries int)
	OnExhausted(attempts int, err error)
}

// TokenSource yields the caller's session bearer credential, or "" when no
// session is active.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Executor struct {
	client   *http.Client
	tokens   TokenSource
	policy   RetryPolicy
	observer RetryObserver
	logger   zerolog.Logger
}

type ExecutorOption func(*Executor)

func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) { e.client = c }
}

func WithRetryPolicy(p RetryPolicy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

func WithObserver(o RetryObserver) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

func WithTokenSource(ts TokenSource) ExecutorOption {
	return func(e *Executor) { e.tokens = ts }
}

func NewExecutor(logger zerolog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client: &http.Client{Timeout: 30 * time.Second},
		policy: DefaultRetryPolicy(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs the request through the retry loop and always returns a resolved
// envelope. Network-level failures are classified like retryable 5xx; other
// 4xx are surfaced immediately because they will not self-resolve.
func (e *Executor) Do(ctx context.Context, req Request) Response {
	bearer := req.Bearer
	if req.RequireAuth && bearer == "" && e.tokens != nil {
		token, err := e.tokens.Token(ctx)
		if err != nil {
			return Response{Error: fmt.Sprintf("resolve session token: %v", err), Status: http.StatusUnauthorized}
		}
		bearer = token
	}
	if req.RequireAuth && bearer == "" {
		return Response{Error: "no active session", Status: http.StatusUnauthorized}
	}

	maxRetries := e.policy.MaxRetries
	if req.NoRetry {
		maxRetries = 0
	}

	var last Response
	for attempt := 0; ; attempt++ {
		resp, retryableErr := e.attempt(ctx, req, bearer)
		resp.RetryCount = attempt
		last = resp

		if resp.Success {
			if e.observer != nil {
				e.observer.OnSuccess(attempt)
			}
			return resp
		}
		if !retryableErr || attempt >= maxRetries {
			break
		}

		if e.observer != nil {
			e.observer.OnRetry(attempt+1, maxRetries, fmt.Errorf("%s", resp.Error))
		}
		e.logger.Warn().
			Str("url", req.URL).
			Int("attempt", attempt+1).
			Int("max_retries", maxRetries).
			Str("error", resp.Error).
			Msg("retrying request")

		if !sleepWithContext(ctx, e.policy.delay(attempt+1)) {
			last.Error = ctx.Err().Error()
			break
		}
	}

	if e.observer != nil {
		e.observer.OnExhausted(last.RetryCount+1, fmt.Errorf("%s", last.Error))
	}
	return last
}

// attempt performs a single call. The second return value reports whether the
// failure is transient and worth retrying.
func (e *Executor) attempt(ctx context.Context, req Request, bearer string) (Response, bool) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return Response{Error: fmt.Sprintf("encode request body: %v", err), Status: 0}, false
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{Error: fmt.Sprintf("build request: %v", err), Status: 0}, false
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := e.client.Do(httpReq)
	if err != nil {
		// DNS failures, connection resets and timeouts are treated like a
		// retryable server error.
		return Response{Error: err.Error(), Status: 0}, true
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{Error: fmt.Sprintf("read response body: %v", err), Status: httpResp.StatusCode}, true
	}

	if httpResp.StatusCode >= 200 && httpResp.StatusCode < 300 {
		resp := Response{Success: true, Status: httpResp.StatusCode}
		if strings.Contains(httpResp.Header.Get("Content-Type"), "application/json") && json.Valid(raw) {
			resp.Data = json.RawMessage(raw)
		}
		return resp, false
	}

	return Response{
		Error:  errorMessage(raw, httpResp.StatusCode),
		Status: httpResp.StatusCode,
	}, e.policy.retryable(httpResp.StatusCode)
}

// errorMessage extracts a human-readable message from an error body, falling
// back to "HTTP <status>".
func errorMessage(raw []byte, status int) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
