package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Error marks an error as recoverable or not, overriding the heuristics
// used by IsRecoverable.
type Error struct {
	Err         error
	Recoverable bool
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Recoverable marks err as worth retrying.
func Recoverable(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err, Recoverable: true}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Err: err}
}

// StatusError reports an unsuccessful HTTP response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
}

// RecoverableStatus reports whether a request that failed with the given
// HTTP status code may succeed when repeated.
func RecoverableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}

var transientMessages = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"rate limit",
	"service unavailable",
	"bad gateway",
}

// IsRecoverable reports whether err is worth retrying. Explicit marks from
// Recoverable and Permanent win, then HTTP status codes, then network
// timeouts and a few well known transient messages.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var marked *Error
	if errors.As(err, &marked) {
		return marked.Recoverable
	}
	var status *StatusError
	if errors.As(err, &status) {
		return RecoverableStatus(status.StatusCode)
	}
	switch {
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
