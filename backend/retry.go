package backend

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy retries with exponential backoff clamped to [MinWait, MaxWait].
type RetryPolicy struct {
	Attempts   int
	Multiplier time.Duration
	MinWait    time.Duration
	MaxWait    time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	Attempts:   3,
	Multiplier: time.Second,
	MinWait:    4 * time.Second,
	MaxWait:    10 * time.Second,
}

// NoRetry makes a single attempt.
var NoRetry = RetryPolicy{Attempts: 1}

func (p RetryPolicy) wait(attempt int) time.Duration {
	d := p.Multiplier * time.Duration(1<<attempt)
	if d < p.MinWait {
		d = p.MinWait
	}
	if p.MaxWait > 0 && d > p.MaxWait {
		d = p.MaxWait
	}
	return d
}

func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	return true
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. onRetry is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, fn func() error, onRetry func(attempt int, err error)) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		timer := time.NewTimer(p.wait(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
