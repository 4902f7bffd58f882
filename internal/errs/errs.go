// Package errs defines the uniform error kinds from spec §7.
package errs

import (
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error kinds surfaced uniformly across the core,
// spec §7.
type Kind string

const (
	Transient              Kind = "Transient"
	Degraded               Kind = "Degraded"
	InsufficientLiquidity  Kind = "InsufficientLiquidity"
	InvalidInput           Kind = "InvalidInput"
	InvalidPreimage        Kind = "InvalidPreimage"
	OrderNotFound          Kind = "OrderNotFound"
	Fatal                  Kind = "Fatal"
)

// Error wraps a Kind with a message and optional details, matching
// the API error shape from spec §6: {kind, message, details?}.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a Kind-tagged error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap tags an existing error with a Kind, preserving its stack trace
// via github.com/pkg/errors exactly as the teacher's RPC call sites
// do (ttp-processor/server.go: errors.Wrapf(err, ...)).
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: errors.Wrap(err, message)}
}

// Wrapf is the formatted variant of Wrap.
func Wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: errors.Wrapf(err, format, args...)}
}

// WithDetail attaches an additional detail field and returns the
// receiver for chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// KindOf extracts the Kind of err if it is (or wraps) an *Error,
// defaulting to Fatal for unrecognized errors so that callers never
// silently treat an unknown failure as retryable.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Fatal
}
