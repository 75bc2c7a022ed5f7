package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the tool and model boundaries.
type ErrorKind string

const (
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindInvalidArgument  ErrorKind = "INVALID_ARGUMENT"
	KindUnknownTool      ErrorKind = "UNKNOWN_TOOL"
	KindTransportFailure ErrorKind = "TRANSPORT_FAILURE"
	KindMissingField     ErrorKind = "MISSING_FIELD"
	KindCancelled        ErrorKind = "CANCELLED"
)

// Sentinels for errors.Is; only the kind is compared.
var (
	ErrForbidden        = &Error{Kind: KindForbidden}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
	ErrUnknownTool      = &Error{Kind: KindUnknownTool}
	ErrTransportFailure = &Error{Kind: KindTransportFailure}
	ErrMissingField     = &Error{Kind: KindMissingField}
	ErrCancelled        = &Error{Kind: KindCancelled}
)

// Error is a classified failure. Tools return it instead of panicking.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...interface{}) *Error {
	return newError(KindForbidden, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return newError(KindInvalidArgument, format, args...)
}

func UnknownTool(name string) *Error {
	return newError(KindUnknownTool, "unknown tool: %s", name)
}

func MissingField(format string, args ...interface{}) *Error {
	return newError(KindMissingField, format, args...)
}

// TransportFailure wraps a model endpoint failure.
func TransportFailure(cause error, format string, args ...interface{}) *Error {
	e := newError(KindTransportFailure, format, args...)
	e.Cause = cause
	return e
}

// Cancelled reports a call abandoned because its context ended; cause is
// the context error.
func Cancelled(cause error) *Error {
	e := newError(KindCancelled, "call cancelled: %v", cause)
	e.Cause = cause
	return e
}

// KindOf returns the classification of err, or "" when it carries none.
// Provider errors always classify as transport failures.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return KindTransportFailure
	}
	return ""
}

// ProviderError is returned by language model clients.
type ProviderError struct {
	Code       string
	Message    string
	Retryable  bool
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
