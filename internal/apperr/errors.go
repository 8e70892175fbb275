// Package apperr defines the error taxonomy shared by the services, the
// guard chain and the HTTP layer.  Every failure that leaves the core is an
// *Error carrying a Kind; the transport maps the Kind to a status code and
// never inspects messages.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.  Only Transient is safe for a caller to retry.
type Kind string

const (
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindExternalProviderOnly Kind = "EXTERNAL_PROVIDER_ONLY"
	KindUnauthorized         Kind = "UNAUTHORIZED"
	KindForbidden            Kind = "FORBIDDEN"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindBadRequest           Kind = "BAD_REQUEST"
	KindTransient            Kind = "TRANSIENT"
	KindInternal             Kind = "INTERNAL"
)

// Error is the concrete error type returned by the core.  Message is safe to
// show to clients; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone: errors.Is(err, apperr.NotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error of the given kind.
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func InvalidCredentials() *Error {
	return New(KindInvalidCredentials, "invalid credentials")
}

func ExternalProviderOnly() *Error {
	return New(KindExternalProviderOnly, "this account signs in with an external provider")
}

func Unauthorized(msg string) *Error { return New(KindUnauthorized, orDefault(msg, "unauthorized")) }
func Forbidden(msg string) *Error    { return New(KindForbidden, orDefault(msg, "forbidden")) }
func NotFound(msg string) *Error     { return New(KindNotFound, orDefault(msg, "not found")) }
func Conflict(msg string) *Error     { return New(KindConflict, orDefault(msg, "conflict")) }
func BadRequest(msg string) *Error   { return New(KindBadRequest, orDefault(msg, "bad request")) }

// Transient wraps a storage or deadline failure.
func Transient(err error) *Error {
	return Wrap(KindTransient, "temporarily unavailable, retry later", err)
}

// Internal wraps a failure that is neither the caller's fault nor retryable.
func Internal(err error) *Error {
	return Wrap(KindInternal, "internal error", err)
}

// KindOf reports the Kind of err.  Context expiry counts as Transient and
// anything unclassified counts as Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransient
	}
	return KindInternal
}

// IsRetryable is true only for Transient failures.
func IsRetryable(err error) bool { return KindOf(err) == KindTransient }

// From normalizes any error into an *Error, keeping existing ones as-is.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if KindOf(err) == KindTransient {
		return Transient(err)
	}
	return Internal(err)
}

// Status maps a Kind to its HTTP status code.
func (k Kind) Status() int {
	switch k {
	case KindInvalidCredentials, KindExternalProviderOnly, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBadRequest:
		return http.StatusBadRequest
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
