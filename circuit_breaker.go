package kvwire

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// NewCircuitBreakerConfig returns a Config.NewCircuitBreaker function for the
// common case.
//
// Only errors that break the connection count as failures. Server errors,
// unexpected replies, invalid keys and caller cancellations are reported to
// the caller but leave the breaker's failure counts untouched.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(string) CircuitBreaker {
	return func(addr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
			IsSuccessful: isBreakerSuccess,
		}
		return NewGoBreaker(settings)
	}
}

// NewGoBreaker creates a gobreaker circuit breaker for use as a CircuitBreaker.
func NewGoBreaker(settings gobreaker.Settings) CircuitBreaker {
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

func isBreakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrInvalidKey) {
		return true
	}
	return !ShouldCloseConnection(err)
}
