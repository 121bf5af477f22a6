package utils

import (
	"context"
	"fmt"
	"time"
)

// Retry runs fn until it succeeds, with exponential backoff between
// attempts. shouldRetry (may be nil) stops early on permanent errors; a
// cancelled ctx stops waiting.
func Retry(ctx context.Context, maxAttempts int, initialDelay time.Duration, fn func() error, shouldRetry func(error) bool) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(delay):
		}
		delay *= 2
	}

	return fmt.Errorf("failed after %d attempts: %w", maxAttempts, err)
}
