// Package apierr defines the error kinds surfaced by the SDK and the
// policy attached to each: Status errors may be recovered from during
// credential creation, Validation and Sync errors are never retried,
// WebSocket errors drive reconnection internally and reach consumers
// only as Lagged items or closed streams.
package apierr

import (
	"errors"
	"fmt"
)

// StatusError is an HTTP non-2xx response.
type StatusError struct {
	Status  int
	Method  string
	Path    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// ValidationError reports a caller-supplied invariant violation. It is
// never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// SyncError reports a state transition attempted while other client
// handles exist. The caller must drop its clones and retry.
type SyncError struct {
	Op      string
	Handles int32
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %d outstanding client handles, need exclusive ownership", e.Op, e.Handles)
}

// InternalError wraps deserialisation, cryptographic, URL-parse, or
// dependency failures.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string { return "internal: " + e.Op + ": " + e.Err.Error() }
func (e *InternalError) Unwrap() error { return e.Err }

// Internal wraps err as an InternalError, or returns nil.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return &InternalError{Op: op, Err: err}
}

// WSError is a connection or subscription failure. Inside the connection
// task these are transient and drive reconnection.
type WSError struct {
	Op  string
	Err error
}

func (e *WSError) Error() string { return "websocket: " + e.Op + ": " + e.Err.Error() }
func (e *WSError) Unwrap() error { return e.Err }

// LaggedError is delivered as a stream item when a slow consumer's ring
// buffer dropped messages. The consumer must reconcile by refreshing
// snapshot state; the dropped deltas are gone.
type LaggedError struct {
	Count uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("stream lagged: %d messages skipped", e.Count)
}

// GeoblockError reports server-side geolocation blocking.
type GeoblockError struct {
	Country string
	Region  string
	IP      string
}

func (e *GeoblockError) Error() string {
	return fmt.Sprintf("access blocked by geolocation (country=%s region=%s ip=%s)", e.Country, e.Region, e.IP)
}

// ErrStreamClosed terminates iteration on a consumer stream.
var ErrStreamClosed = errors.New("stream closed")

// IsStatus reports whether err is a StatusError, optionally matching a
// specific status code (0 matches any).
func IsStatus(err error, status int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return status == 0 || se.Status == status
}
