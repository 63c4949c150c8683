// Package fetch wraps outbound JSON calls so callers never see a raised error.
//
// Every call yields a Result: either the decoded payload or the kind of failure
// that prevented it. Failures are logged here, once, and callers decide whether
// to fall back.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultMaxTries = 3
	maxBodyBytes    = 8 << 20
)

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxTries bounds the attempts made for retryable statuses (429, 5xx).
// A value of 1 disables retries.
func WithMaxTries(n uint) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxTries = n
		}
	}
}

// WithInitialBackoff sets the first retry wait.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.initialBackoff = d
	}
}

// WithRateLimit throttles outgoing requests to rps with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTimeout sets the per-call deadline applied on top of the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// Client performs JSON GETs and reports the outcome as a Result.
type Client struct {
	httpClient     HTTPClient
	limiter        *rate.Limiter
	maxTries       uint
	initialBackoff time.Duration
	timeout        time.Duration
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{},
		maxTries:       defaultMaxTries,
		initialBackoff: 250 * time.Millisecond,
		timeout:        defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying transport for callers that stream bodies.
func (c *Client) HTTPClient() HTTPClient {
	return c.httpClient
}

// GetJSON requests url and decodes a 2xx body into dst.
func (c *Client) GetJSON(ctx context.Context, url string, dst any, headers ...Header) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, res := c.do(ctx, url, headers)
	if !res.OK() {
		res.log()
		return res
	}

	if err := json.Unmarshal(body, dst); err != nil {
		res = Result{URL: url, Status: res.Status, Kind: KindDecode, Err: fmt.Errorf("failed to parse response: %w", err)}
		res.log()
		return res
	}
	return res
}

// Header is a single request header.
type Header struct {
	Key   string
	Value string
}

func (c *Client) do(ctx context.Context, url string, headers []Header) ([]byte, Result) {
	var lastStatus int
	var lastText string

	operation := func() ([]byte, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		for _, h := range headers {
			req.Header.Set(h.Key, h.Value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		defer func() { _ = resp.Body.Close() }()

		lastStatus = resp.StatusCode
		lastText = statusText(resp)

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			serr := &StatusError{Code: resp.StatusCode, Text: lastText}
			if isRetryableStatus(resp.StatusCode) {
				return nil, serr
			}
			return nil, backoff.Permanent(serr)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("failed to read response: %w", err))
		}
		return body, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = 5 * time.Second

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxTries),
	)
	if err == nil {
		return body, Result{URL: url, Status: lastStatus}
	}

	var serr *StatusError
	if errors.As(err, &serr) {
		return nil, Result{URL: url, Status: serr.Code, StatusText: serr.Text, Kind: KindStatus, Err: serr}
	}
	return nil, Result{URL: url, Status: lastStatus, StatusText: lastText, Kind: KindTransport, Err: err}
}

// StatusError reports a non-2xx upstream answer.
type StatusError struct {
	Code int
	Text string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Code, e.Text)
}

func statusText(resp *http.Response) string {
	if t := http.StatusText(resp.StatusCode); t != "" {
		return t
	}
	return resp.Status
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (r Result) log() {
	switch r.Kind {
	case KindStatus:
		slog.Warn("request failed",
			slog.String("url", r.URL),
			slog.Int("status", r.Status),
			slog.String("status_text", r.StatusText))
	case KindTransport, KindDecode:
		slog.Warn("request error",
			slog.String("url", r.URL),
			slog.String("kind", r.Kind.String()),
			slog.Any("error", r.Err))
	}
}
