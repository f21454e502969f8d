package externalApi

import "errors"

var (
	ErrNotFound        = errors.New("error not found")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrUpstreamError   = errors.New("upstream error")
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	// ErrClient is a rejected request (validation, bad input); retrying it cannot help.
	ErrClient        = errors.New("upstream rejected request")
	ErrPriceMismatch = errors.New("confirmed price differs from requested price")
)

// IsRetryable reports whether another attempt of the same request may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUpstreamTimeout) || errors.Is(err, ErrUpstreamError)
}
