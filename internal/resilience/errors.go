package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
)

// TransientError marks an error as safe to retry (rate limit, server error,
// network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// StatusError converts a non-2xx HTTP status into an error, wrapping the
// transient classes (408, 429, 5xx) as TransientError so the retry layer
// picks them up and leaving client errors permanent.
func StatusError(source string, statusCode int) error {
	err := eris.Errorf("%s: unexpected status %d", source, statusCode)
	if IsTransientHTTPStatus(statusCode) {
		return &TransientError{Err: err, StatusCode: statusCode}
	}
	return err
}

// IsTransient reports whether err (or anything in its chain) is worth
// retrying. An open circuit breaker is explicitly not transient: retrying
// into it would only delay the fallback.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
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

	// Wrapped transport errors from HTTP clients lose their type; fall back
	// to message matching.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// server-side condition that a retry may clear.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
