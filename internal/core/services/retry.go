package services

import (
	"context"
	"time"

	"github.com/custodia-labs/verity/internal/logger"
)

// retryWithBackoff runs op up to maxAttempts times, sleeping
// baseDelay * 2^(attempt-1) between attempts. It returns the number of
// attempts made and the last error. Cancelling ctx stops the loop with
// ctx.Err().
func retryWithBackoff(
	ctx context.Context, maxAttempts int, baseDelay time.Duration, op func(ctx context.Context) error,
) (int, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("Succeeded after %d attempts", attempt)
			}
			return attempt, nil
		}
		// The parent context ending is not a provider failure.
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}

		logger.Debug("Attempt %d/%d failed: %v", attempt, maxAttempts, lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return maxAttempts, lastErr
}
