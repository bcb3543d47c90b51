package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOffline indicates that the runtime reported no network connectivity
	// before any attempt was made.
	ErrOffline = errors.New("network connection unavailable")
	// ErrLoginCancelled indicates the user declined a conflict dialog. The
	// attempt is over but nothing is broken.
	ErrLoginCancelled = errors.New("login cancelled by user")
	// ErrSessionExpired indicates a confirmed unauthorized response ended the
	// session.
	ErrSessionExpired = errors.New("session expired, please sign in again")
	// ErrNoSession indicates an operation that requires a session found none.
	ErrNoSession = errors.New("no active session")
	// ErrJobRunning indicates a background job has not reached a terminal
	// state yet.
	ErrJobRunning = errors.New("job still running")
)

// NetworkError wraps a connectivity-level failure. Retryable.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPError is a protocol-level failure carrying the response status and the
// server's message when one could be extracted.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("request failed: %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("request failed: %d", e.Status)
}

// ConflictError carries the normalized 409 session-conflict payload. Never
// retried; routed to interactive conflict resolution instead.
type ConflictError struct {
	Conflict SessionConflict
}

func (e *ConflictError) Error() string {
	if e.Conflict.Message != "" {
		return fmt.Sprintf("session conflict: %s", e.Conflict.Message)
	}
	return "session conflict"
}

// MalformedResponseError marks a 2xx response whose body could not be
// decoded. Fatal: a malformed success is never retried.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response body: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
