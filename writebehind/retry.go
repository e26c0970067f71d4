package writebehind

import (
	"context"
	"time"
)

// RetryPolicy is a bounded retry with linearly growing backoff
// (Backoff, 2*Backoff, ...) between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Do runs fn until it succeeds, the attempts are used up, retryable rejects
// the error or ctx is done. A nil retryable treats every error as retryable.
// The last error from fn is returned.
func (p RetryPolicy) Do(ctx context.Context, retryable func(err error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || (retryable != nil && !retryable(err)) {
			return err
		}

		wait := p.Backoff * time.Duration(attempt)
		if wait <= 0 {
			if ctx.Err() != nil {
				return err
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
