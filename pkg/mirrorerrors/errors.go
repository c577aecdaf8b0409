// Package mirrorerrors defines the error taxonomy shared by every
// retrieval component: invalid caller input, artifacts the upstream
// archive doesn't have, transport failures, and local I/O failures.
package mirrorerrors

import "fmt"

// InvalidInput signals an unparseable date or malformed argument.
type InvalidInput struct {
	Field  string
	Reason string
}

func (e *InvalidInput) Error() string {
	return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
}

// OutOfRange signals a date beyond today, or an empty intersection
// with the upstream archive.
type OutOfRange struct {
	Reason string
}

func (e *OutOfRange) Error() string { return "out of range: " + e.Reason }

// NotFound signals that a single artifact is absent upstream. Callers
// recover from NotFound by skipping the artifact; it never aborts a
// batch on its own.
type NotFound struct {
	Path string
}

func (e *NotFound) Error() string { return "not found: " + e.Path }

// NetworkError wraps a DNS/TCP/TLS/timeout failure. Retryable.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }
func (e *NetworkError) Retryable() bool { return true }

// HTTPError wraps a non-200 response. Retryable only for 5xx.
type HTTPError struct {
	Status int
	URL    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d for %s", e.Status, e.URL)
}
func (e *HTTPError) Retryable() bool { return e.Status >= 500 && e.Status < 600 }

// ProtocolError signals a short read or decompression failure. Fatal.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Reason }
func (e *ProtocolError) Unwrap() error { return e.Err }

// IOError wraps a local filesystem failure (disk full, permission).
// Fatal, and must propagate even from concurrent paths.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("io error during %s on %s: %v", e.Op, e.Path, e.Err)
}
func (e *IOError) Unwrap() error { return e.Err }

// AssertionViolation signals an internal invariant broken. Fatal.
type AssertionViolation struct {
	Reason string
}

func (e *AssertionViolation) Error() string { return "assertion violation: " + e.Reason }

// Retryable is implemented by error kinds that the backoff loop in
// pkg/httpfetch will retry before surfacing a terminal error.
type Retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err, or an error it wraps, is a
// Retryable kind that itself reports retryable.
func IsRetryable(err error) bool {
	var r Retryable
	return asRetryable(err, &r) && r.Retryable()
}

func asRetryable(err error, target *Retryable) bool {
	for err != nil {
		if r, ok := err.(Retryable); ok {
			*target = r
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// IsNotFound reports whether err is (or wraps) a NotFound.
func IsNotFound(err error) bool {
	for err != nil {
		if _, ok := err.(*NotFound); ok {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
