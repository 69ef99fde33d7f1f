package llm

import (
	"context"
	"errors"
	"time"

	"feedback_server/core/domain"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

func newBreaker(name string, log zerolog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,                // trial requests allowed while half-open
		Interval:    60 * time.Second, // closed-state counter reset
		Timeout:     30 * time.Second, // open-state duration
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures >= 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// guarded runs call through the breaker with a deadline. Every failure comes
// back as a ClassifierTransportError.
func guarded(ctx context.Context, cb *gobreaker.CircuitBreaker, timeout time.Duration, op string, call func(ctx context.Context) (string, error)) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := cb.Execute(func() (interface{}, error) {
		return call(ctx)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.ErrTimeout
		}
		return "", &domain.ClassifierTransportError{Op: op, Err: err}
	}

	reply, _ := out.(string)
	return reply, nil
}
