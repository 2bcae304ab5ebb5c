package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsFirstTime(t *testing.T) {
	calls := 0
	attempts, err := retryWithBackoff(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	attempts, err := retryWithBackoff(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	calls := 0
	attempts, err := retryWithBackoff(context.Background(), 3, 0, func(context.Context) error {
		calls++
		return errors.New("still broken")
	})

	require.EqualError(t, err, "still broken")
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_ExponentialDelay(t *testing.T) {
	start := time.Now()
	_, err := retryWithBackoff(context.Background(), 3, 10*time.Millisecond, func(context.Context) error {
		return errors.New("nope")
	})

	require.Error(t, err)
	// 10ms + 20ms between three attempts
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	attempts, err := retryWithBackoff(context.Background(), 0, 0, func(context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	attempts, err := retryWithBackoff(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("provider down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_CancelDuringSleep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := retryWithBackoff(ctx, 3, time.Hour, func(context.Context) error {
		return errors.New("provider down")
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRetryWithBackoff_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts, err := retryWithBackoff(ctx, 3, 0, func(context.Context) error {
		t.Fatal("op must not run")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, attempts)
}
