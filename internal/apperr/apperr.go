// Package apperr defines the error kinds surfaced to callers of the
// generator, the archive codec and the storage layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a terminal failure
type Kind string

const (
	KindPrecondition       Kind = "precondition"
	KindTransport          Kind = "transport"
	KindRateLimit          Kind = "rate_limit"
	KindEmptyResponse      Kind = "empty_response"
	KindInvalidJSON        Kind = "invalid_json"
	KindIncompleteResponse Kind = "incomplete_response"
	KindArchiveOpen        Kind = "archive_open"
	KindNotFound           Kind = "not_found"
	KindInvalidInput       Kind = "invalid_input"
)

// RateLimitHint is attached to every RateLimit error
const RateLimitHint = "The shared quota for this provider is exhausted. Add your own API key in settings and try again."

// Error is the application error type
type Error struct {
	Kind    Kind
	Message string
	Hint    string // User-actionable remediation
	Detail  string // Diagnostic payload, e.g. the raw provider text
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithDetail attaches diagnostic detail
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithHint attaches a remediation hint
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// New creates an error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps err with a kind and message
func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Sentinels for errors.Is
var (
	ErrPrecondition       = &Error{Kind: KindPrecondition}
	ErrTransport          = &Error{Kind: KindTransport}
	ErrRateLimit          = &Error{Kind: KindRateLimit}
	ErrEmptyResponse      = &Error{Kind: KindEmptyResponse}
	ErrInvalidJSON        = &Error{Kind: KindInvalidJSON}
	ErrIncompleteResponse = &Error{Kind: KindIncompleteResponse}
	ErrArchiveOpen        = &Error{Kind: KindArchiveOpen}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidInput       = &Error{Kind: KindInvalidInput}
)

// KindOf returns the kind of err, or "" if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code used by the local API
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindPrecondition, KindInvalidInput, KindArchiveOpen:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindTransport, KindEmptyResponse, KindInvalidJSON, KindIncompleteResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage renders err as a single human-readable line. Rate limit
// errors always carry the personal-credential hint.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	hint := e.Hint
	if e.Kind == KindRateLimit && hint == "" {
		hint = RateLimitHint
	}
	if hint != "" {
		msg = msg + ". " + hint
	}
	return msg
}
