package externalApi

import (
	"context"
	"log/slog"
	"time"

	"github.com/KotFed0t/invest_ledger/utils"
	"github.com/jonboulle/clockwork"
)

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Clock        clockwork.Clock
}

// Delay returns the pause after the failed attempt number attempt (counted from 0):
// min(InitialDelay * 2^attempt, MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < attempt; i++ {
		if d > p.MaxDelay/2 {
			return p.MaxDelay
		}
		d *= 2
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do calls fn up to MaxRetries+1 times. Only errors matched by IsRetryable are retried.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	clock := p.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}

		if attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt)
		slog.Warn(
			"retryable upstream error",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err", err.Error()),
		)

		select {
		case <-ctx.Done():
			return err
		case <-clock.After(delay):
		}
	}

	return err
}
