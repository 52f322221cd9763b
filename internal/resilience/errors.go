// Package resilience classifies lookup failures and provides the retry and
// circuit breaker helpers used around calls to the external source.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// Failure kinds recorded in a row status as "error:<kind>".
const (
	KindTransport  = "transport"
	KindBlocked    = "blocked"
	KindBrowser    = "browser"
	KindTimeout    = "timeout"
	KindPanic      = "panic"
	KindUnexpected = "unexpected"
)

// TransientError marks a failure that is safe to retry (429, 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// KindError attaches a failure kind to an error.
type KindError struct {
	Kind string
	Err  error
}

func (e *KindError) Error() string {
	return e.Kind + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// WithKind tags err with kind. A nil err stays nil.
func WithKind(kind string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: kind, Err: err}
}

// PanicError converts a recovered panic value into an error of kind panic.
func PanicError(v any) error {
	if err, ok := v.(error); ok {
		return WithKind(KindPanic, err)
	}
	return WithKind(KindPanic, fmt.Errorf("%v", v))
}

// Kind reports the failure kind of err. Explicit tags win, then deadlines,
// then anything that looks transient counts as transport.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if IsTransient(err) {
		return KindTransport
	}
	return KindUnexpected
}

var transientPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is a TransientError or a network failure
// (timeout, reset, refused, DNS) that may succeed on another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a response status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
