package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/metrolabs/equiptrack/internal/core/domain"
	"github.com/metrolabs/equiptrack/internal/core/port"
)

type staticTokens struct {
	token atomic.Value
}

func newStaticTokens(token string) *staticTokens {
	s := &staticTokens{}
	s.token.Store(token)
	return s
}

func (s *staticTokens) AccessToken() string {
	return s.token.Load().(string)
}

type recordingHandler struct {
	calls int32
}

func (h *recordingHandler) HandleUnauthorized(context.Context) {
	atomic.AddInt32(&h.calls, 1)
}

func (h *recordingHandler) count() int32 {
	return atomic.LoadInt32(&h.calls)
}

func noSleep(t *testing.T) (func(ctx context.Context, d time.Duration) error, *[]time.Duration) {
	t.Helper()
	var slept []time.Duration
	return func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}, &slept
}

func newTestClient(t *testing.T, server *httptest.Server, tokens TokenSource, opts ...Option) *Client {
	t.Helper()
	sleep, _ := noSleep(t)
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithSleep(sleep),
	}
	return New(Config{
		BaseURL:     server.URL,
		MaxAttempts: 3,
	}, tokens, append(base, opts...)...)
}

func TestRequestSucceedsFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-1" {
			t.Errorf("unexpected authorization header %q", got)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("token-1"))

	var out struct {
		OK bool `json:"ok"`
	}
	if err := client.Get(context.Background(), "/api/equipment/", &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.OK {
		t.Fatal("expected decoded body")
	}
}

func TestOfflineFailsBeforeAnyAttempt(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens(""),
		WithConnectivityProbe(port.OnlineFunc(func() bool { return false })))

	_, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil)
	if !errors.Is(err, domain.ErrOffline) {
		t.Fatalf("expected ErrOffline, got %v", err)
	}
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError wrapper, got %T", err)
	}
	if atomic.LoadInt32(&attempts) != 0 {
		t.Fatal("expected no request to be issued while offline")
	}
}

func TestNetworkErrorsBackOffExponentially(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // every attempt now fails at the dial

	sleep, slept := noSleep(t)
	client := New(Config{
		BaseURL:        server.URL,
		MaxAttempts:    3,
		RetryBaseDelay: 100 * time.Millisecond,
	}, newStaticTokens(""), WithLogger(zaptest.NewLogger(t)), WithSleep(sleep))

	_, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil)
	var netErr *domain.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d backoffs, got %v", len(want), *slept)
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Fatalf("backoff %d: expected %v, got %v", i, d, (*slept)[i])
		}
	}
}

func TestTokenReReadOnEveryAttempt(t *testing.T) {
	tokens := newStaticTokens("stale")

	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		if len(seen) == 1 {
			// Another instance rotates the token while this 401 is in flight.
			tokens.token.Store("fresh")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, tokens)

	if _, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(seen))
	}
	if seen[0] != "Bearer stale" {
		t.Fatalf("expected original token on first attempt, got %q", seen[0])
	}
	if seen[1] != "Bearer fresh" {
		t.Fatalf("expected refreshed token on the retry, got %q", seen[1])
	}
}

func TestSecondUnauthorizedInvokesHandlerOnce(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	handler := &recordingHandler{}
	sleep, slept := noSleep(t)
	client := New(Config{
		BaseURL:                server.URL,
		MaxAttempts:            3,
		UnauthorizedRetryDelay: 500 * time.Millisecond,
	}, newStaticTokens("tok"), WithLogger(zaptest.NewLogger(t)), WithSleep(sleep))
	client.SetUnauthorizedHandler(handler)

	_, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil)

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if got := atomic.LoadInt32(&requests); got != 2 {
		t.Fatalf("expected exactly 2 attempts (one free retry), got %d", got)
	}
	if handler.count() != 1 {
		t.Fatalf("expected handler to run exactly once, got %d", handler.count())
	}
	if len(*slept) != 1 || (*slept)[0] != 500*time.Millisecond {
		t.Fatalf("expected one 500ms pause before the free retry, got %v", *slept)
	}
}

func TestUnauthorizedRecoversOnFreeRetry(t *testing.T) {
	handler := &recordingHandler{}
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))
	client.SetUnauthorizedHandler(handler)

	if _, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handler.count() != 0 {
		t.Fatal("transient 401 must not reach the unauthorized handler")
	}
}

func TestLoginUnauthorizedBypassesHandler(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"bad credentials"}`))
	}))
	defer server.Close()

	handler := &recordingHandler{}
	client := newTestClient(t, server, newStaticTokens(""))
	client.SetUnauthorizedHandler(handler)

	_, err := client.Request(context.Background(), http.MethodPost, "/api/auth/login/json", map[string]string{"username": "u"})

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if httpErr.Message != "bad credentials" {
		t.Fatalf("expected server message to pass through, got %q", httpErr.Message)
	}
	if handler.count() != 0 {
		t.Fatal("login 401 must not invoke the unauthorized handler")
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatal("login 401 must not be retried")
	}
}

func TestConflictNeverRetried(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"detail":{"conflict_type":"session_exists","message":"already signed in","active_sessions":[{"ip_address":"10.0.0.8","user_agent":"equipctl"}]}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))

	_, err := client.Request(context.Background(), http.MethodPost, "/api/auth/login/json", nil)

	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Conflict.ConflictType != domain.ConflictTypeSessionExists {
		t.Fatalf("expected nested detail to be flattened, got %+v", conflictErr.Conflict)
	}
	if len(conflictErr.Conflict.ActiveSessions) != 1 || conflictErr.Conflict.ActiveSessions[0].IPAddress != "10.0.0.8" {
		t.Fatalf("expected active sessions to survive normalization, got %+v", conflictErr.Conflict)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatalf("409 must use a single attempt, got %d", atomic.LoadInt32(&requests))
	}
}

func TestFlatConflictPayloadAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"conflict_type":"session_exists","message":"already signed in"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))

	_, err := client.Request(context.Background(), http.MethodPost, "/api/auth/login/json", nil)
	var conflictErr *domain.ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.Conflict.ConflictType != domain.ConflictTypeSessionExists {
		t.Fatalf("expected flat payload to decode, got %+v", conflictErr.Conflict)
	}
}

func TestServerErrorFailsImmediately(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"boom"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))

	_, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil)
	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusInternalServerError {
		t.Fatalf("expected 500 HTTPError, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatal("HTTP failures other than 401 must not be retried")
	}
}

func TestMalformedSuccessBodyIsFatal(t *testing.T) {
	var requests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))

	_, err := client.Request(context.Background(), http.MethodGet, "/api/equipment/", nil)
	var malformed *domain.MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedResponseError, got %v", err)
	}
	if atomic.LoadInt32(&requests) != 1 {
		t.Fatal("malformed success body must not be retried")
	}
}

func TestEmptySuccessBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(t, server, newStaticTokens("tok"))

	raw, err := client.Request(context.Background(), http.MethodDelete, "/api/equipment/7", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Fatalf("expected nil body, got %q", raw)
	}
}

func TestSkipUnauthorizedHandlerOption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	handler := &recordingHandler{}
	client := newTestClient(t, server, newStaticTokens("tok"))
	client.SetUnauthorizedHandler(handler)

	_, err := client.Request(context.Background(), http.MethodGet, "/api/auth/me", nil,
		WithMaxAttempts(1), WithoutUnauthorizedHandler())

	var httpErr *domain.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
	if handler.count() != 0 {
		t.Fatal("WithoutUnauthorizedHandler must suppress the handler")
	}
}
