// Package apperr classifies errors into the small set of kinds the gateway
// cares about at its edges (JSON-RPC responses, HTTP status mapping).
package apperr

import (
	"errors"
	"fmt"
)

// Kind names a class of failure, not a concrete type.
type Kind string

const (
	Validation       Kind = "validation"
	NotFound         Kind = "not_found"
	Unauthorized     Kind = "unauthorized"
	Forbidden        Kind = "forbidden"
	Conflict         Kind = "conflict"
	RateLimited      Kind = "rate_limited"
	Network          Kind = "network"
	Upstream         Kind = "upstream"
	Crypto           Kind = "crypto"
	Storage          Kind = "storage"
	Timeout          Kind = "timeout"
	InternalInvariant Kind = "internal_invariant"

	// Channel adapter error kinds (§4.9 Channel Adapter Contract).
	NotConnected  Kind = "not_connected"
	AuthFailed    Kind = "auth_failed"
	DeliveryFailed Kind = "delivery_failed"
	Config        Kind = "config"
)

// Error wraps an underlying cause with a Kind and optional retry-after hint.
type Error struct {
	kind       Kind
	msg        string
	cause      error
	retryAfter int
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classification of this error.
func (e *Error) Kind() Kind { return e.kind }

// RetryAfter returns the retry-after-seconds hint for RateLimited errors (0 otherwise).
func (e *Error) RetryAfter() int { return e.retryAfter }

// New builds a fresh Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{kind: kind, msg: message}
}

// Wrap classifies an existing error under kind, preserving it via Unwrap.
func Wrap(kind Kind, err error) *Error {
	return &Error{kind: kind, msg: err.Error(), cause: err}
}

// Wrapf is Wrap with a formatted message prefix.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: err}
}

// RateLimit builds a RateLimited error carrying the retry-after hint.
func RateLimit(retryAfterSecs int) *Error {
	return &Error{kind: RateLimited, msg: "rate limited", retryAfter: retryAfterSecs}
}

// KindOf extracts the Kind of err, defaulting to InternalInvariant when err
// is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return InternalInvariant
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
