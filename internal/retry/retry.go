// Package retry holds the one backoff policy shared by all outbound Strava
// calls, so the retry parameters live in a single place.
package retry

import (
	"context"
	"errors"
	"time"
)

// TransientError marks a failure worth retrying. After, when positive,
// overrides the computed backoff (taken from a Retry-After header).
type TransientError struct {
	Err   error
	After time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable with an optional server-provided delay.
func Transient(err error, after time.Duration) error {
	return &TransientError{Err: err, After: after}
}

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func NewPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, or exhausts
// MaxAttempts. Backoff doubles per attempt, capped at MaxDelay, unless the
// transient error carries its own delay.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt, lastErr)
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		var transient *TransientError
		if !errors.As(err, &transient) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (p Policy) backoff(attempt int, lastErr error) time.Duration {
	var transient *TransientError
	if errors.As(lastErr, &transient) && transient.After > 0 {
		return transient.After
	}
	delay := p.BaseDelay << uint(attempt-1)
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
