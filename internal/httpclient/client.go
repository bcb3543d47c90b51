// Package httpclient implements the resilient request pipeline every API
// call goes through: connectivity precondition, fresh bearer-token
// injection, retry with exponential backoff for network-class failures, and
// disambiguated 401/409 handling.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
	"github.com/metrolabs/equiptrack/internal/infra/telemetry"
)

// TokenSource yields the current bearer token. Implementations must re-read
// their backing store on every call so a token refreshed mid-session is
// picked up by the very next request.
type TokenSource interface {
	AccessToken() string
}

// UnauthorizedHandler reacts to a confirmed (non-login, second-occurrence)
// 401 response.
type UnauthorizedHandler interface {
	HandleUnauthorized(ctx context.Context)
}

// Config carries the request engine settings.
type Config struct {
	BaseURL                string
	Timeout                time.Duration
	MaxAttempts            int
	RetryBaseDelay         time.Duration
	UnauthorizedRetryDelay time.Duration
	LoginPath              string
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.UnauthorizedRetryDelay <= 0 {
		c.UnauthorizedRetryDelay = 500 * time.Millisecond
	}
	if c.LoginPath == "" {
		c.LoginPath = "/api/auth/login"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

// Client is the request engine. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	tokens     TokenSource
	probe      port.ConnectivityProbe
	logger     *zap.Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	sleep      func(ctx context.Context, d time.Duration) error

	mu             sync.RWMutex
	onUnauthorized UnauthorizedHandler
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// WithMetrics attaches client counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithConnectivityProbe replaces the runtime connectivity check.
func WithConnectivityProbe(probe port.ConnectivityProbe) Option {
	return func(c *Client) { c.probe = probe }
}

// WithSleep overrides the internal delay function for deterministic tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// New constructs a request engine over the supplied token source.
func New(cfg Config, tokens TokenSource, opts ...Option) *Client {
	client := &Client{
		cfg:    cfg.withDefaults(),
		tokens: tokens,
		probe:  port.OnlineFunc(func() bool { return true }),
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/metrolabs/equiptrack/internal/httpclient"),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: client.cfg.Timeout}
	}
	return client
}

// SetUnauthorizedHandler registers the handler invoked on a confirmed 401.
// Registered after construction because the handler itself issues requests
// through this client.
func (c *Client) SetUnauthorizedHandler(handler UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = handler
}

func (c *Client) unauthorizedHandler() UnauthorizedHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onUnauthorized
}

type requestOptions struct {
	maxAttempts             int
	skipUnauthorizedHandler bool
}

// RequestOption customizes a single request.
type RequestOption func(*requestOptions)

// WithMaxAttempts overrides the attempt limit for this request.
func WithMaxAttempts(n int) RequestOption {
	return func(o *requestOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithoutUnauthorizedHandler suppresses global unauthorized handling for
// this request. Used by the session-validity recheck, which must never
// recurse into the handler it serves.
func WithoutUnauthorizedHandler() RequestOption {
	return func(o *requestOptions) { o.skipUnauthorizedHandler = true }
}

// Request issues an authenticated JSON call and returns the raw response
// body. Failures follow the engine taxonomy: *domain.NetworkError,
// *domain.HTTPError, *domain.ConflictError, *domain.MalformedResponseError.
func (c *Client) Request(ctx context.Context, method, endpoint string, body any, opts ...RequestOption) (json.RawMessage, error) {
	options := requestOptions{maxAttempts: c.cfg.MaxAttempts}
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		payload = encoded
	}

	return c.do(ctx, method, endpoint, payload, options)
}

// Get issues a GET request and decodes the response into out when non-nil.
func (c *Client) Get(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodGet, endpoint, nil, out, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPost, endpoint, body, out, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, endpoint string, body, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodPut, endpoint, body, out, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, endpoint string, out any, opts ...RequestOption) error {
	return c.call(ctx, http.MethodDelete, endpoint, nil, out, opts...)
}

func (c *Client) call(ctx context.Context, method, endpoint string, body, out any, opts ...RequestOption) error {
	raw, err := c.Request(ctx, method, endpoint, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.MalformedResponseError{Err: err}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, options requestOptions) (json.RawMessage, error) {
	if !c.probe.Online() {
		return nil, &domain.NetworkError{Err: domain.ErrOffline}
	}

	ctx, span := c.tracer.Start(ctx, "httpclient.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.endpoint", endpoint),
	))
	defer span.End()

	login := c.isLoginEndpoint(endpoint)
	maxAttempts := options.maxAttempts
	if maxAttempts <= 0 {
		maxAttempts = c.cfg.MaxAttempts
	}

	var lastErr error
	unauthorizedRetried := false

	for attempt := 1; attempt <= maxAttempts; {
		status, body, err := c.issue(ctx, method, endpoint, payload)
		c.metrics.IncRequests()
		if err != nil {
			lastErr = &domain.NetworkError{Err: err}
			if attempt >= maxAttempts {
				break
			}
			delay := c.cfg.RetryBaseDelay * (1 << (attempt - 1))
			c.logger.Warn("request failed, backing off",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if sleepErr := c.sleep(ctx, delay); sleepErr != nil {
				span.SetStatus(codes.Error, sleepErr.Error())
				return nil, sleepErr
			}
			c.metrics.IncRetries()
			attempt++
			continue
		}

		switch {
		case status == http.StatusUnauthorized && login:
			// Bad credentials while the user is typing a password; global
			// unauthorized handling here would cause a redirect loop.
			err := &domain.HTTPError{Status: status, Message: messageFromBody(body, "invalid username or password")}
			span.SetStatus(codes.Error, err.Error())
			return nil, err

		case status == http.StatusUnauthorized:
			if !unauthorizedRetried {
				// One free retry at the same attempt index to absorb a
				// token-refresh race.
				unauthorizedRetried = true
				c.logger.Debug("first 401, retrying once",
					zap.String("endpoint", endpoint),
					zap.Duration("delay", c.cfg.UnauthorizedRetryDelay),
				)
				if sleepErr := c.sleep(ctx, c.cfg.UnauthorizedRetryDelay); sleepErr != nil {
					span.SetStatus(codes.Error, sleepErr.Error())
					return nil, sleepErr
				}
				c.metrics.IncRetries()
				continue
			}
			c.metrics.IncUnauthorized()
			if handler := c.unauthorizedHandler(); handler != nil && !options.skipUnauthorizedHandler {
				handler.HandleUnauthorized(ctx)
			}
			err := &domain.HTTPError{Status: status, Message: "session expired"}
			span.SetStatus(codes.Error, err.Error())
			return nil, err

		case status == http.StatusConflict:
			c.metrics.IncConflicts()
			err := &domain.ConflictError{Conflict: normalizeConflict(body)}
			span.SetStatus(codes.Error, err.Error())
			return nil, err

		case status < 200 || status > 299:
			err := &domain.HTTPError{Status: status, Message: messageFromBody(body, "")}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 {
			return nil, nil
		}
		if !json.Valid(trimmed) {
			err := &domain.MalformedResponseError{Err: fmt.Errorf("response to %s %s is not valid JSON", method, endpoint)}
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		return json.RawMessage(trimmed), nil
	}

	span.SetStatus(codes.Error, lastErr.Error())
	return nil, lastErr
}

// issue performs one HTTP round trip. Headers are rebuilt and the bearer
// token re-read from the token source on every call.
func (c *Client) issue(ctx context.Context, method, endpoint string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func (c *Client) isLoginEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, c.cfg.LoginPath)
}

// normalizeConflict flattens the optional "detail" nesting of a 409 payload
// into one shape. A payload that fails to decode yields a zero conflict; the
// resolver treats that as malformed and falls back to client-side detection.
func normalizeConflict(body []byte) domain.SessionConflict {
	payload := body
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if trimmed := bytes.TrimSpace(envelope.Detail); len(trimmed) > 0 && trimmed[0] == '{' {
			payload = trimmed
		}
	}

	var conflict domain.SessionConflict
	_ = json.Unmarshal(payload, &conflict)
	return conflict
}

// messageFromBody extracts the server's error message, accepting both the
// {"detail": "..."} and {"message": "..."} conventions.
func messageFromBody(body []byte, fallback string) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		var detail string
		if json.Unmarshal(envelope.Detail, &detail) == nil && detail != "" {
			return detail
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return fallback
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
