package util

import (
	"context"
	"fmt"
	"time"
)

// Retry calls fn up to maxAttempts times, doubling the delay between
// attempts starting from baseDelay. It returns nil as soon as fn succeeds.
// Cancelling the context aborts the wait between attempts, never an attempt
// in progress.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var lastErr error
	for attempt, delay := 1, baseDelay; ; attempt, delay = attempt+1, delay*2 {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt >= maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}
