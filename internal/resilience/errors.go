// Package resilience classifies failures from the standards site and the
// object store so workers can log them consistently.
package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/aws/smithy-go"
)

// Class is the failure category attached to error logs.
type Class string

const (
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
	ClassCancelled Class = "cancelled"
)

// TransientError marks a failure worth retrying on a later run, such as a
// 429 or 5xx from the listing host.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err. statusCode is 0 when no HTTP response was read.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// Object store error codes that clear on their own.
var transientAPICodes = map[string]bool{
	"SlowDown":            true,
	"RequestTimeout":      true,
	"InternalError":       true,
	"ServiceUnavailable":  true,
	"ThrottlingException": true,
}

// Substrings of wrapped transport errors that lost their type on the way up.
var transientMessages = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err, or anything it wraps, is likely to
// succeed when tried again later.
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

	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && transientAPICodes[apiErr.ErrorCode()] {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether a response status should be
// retried on a later run.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return statusCode >= 500 && statusCode != http.StatusNotImplemented
}

// Classify buckets err for logging. Cancellation wins over everything else.
func Classify(err error) Class {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCancelled
	case IsTransient(err):
		return ClassTransient
	default:
		return ClassPermanent
	}
}

// ClassifyError is Classify as a plain string for zap fields.
func ClassifyError(err error) string {
	return string(Classify(err))
}
