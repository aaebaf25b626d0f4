package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(error) bool { return true }, nil,
		func() (string, error) {
			calls++
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsBudgetOnTransientErrors(t *testing.T) {
	transientErr := errors.New("connection refused")
	calls := 0
	retries := 0

	_, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(error) bool { return true },
		func(attempt int, delay time.Duration, err error) { retries++ },
		func() (string, error) {
			calls++
			return "", transientErr
		})

	require.ErrorIs(t, err, transientErr)
	assert.Equal(t, 4, calls, "MaxRetries of 3 allows four attempts")
	assert.Equal(t, 3, retries)
}

func TestDo_StopsOnNonTransientError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0

	_, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(error) bool { return false }, nil,
		func() (string, error) {
			calls++
			return "", permanent
		})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(error) bool { return true }, nil,
		func() (int, error) {
			calls++
			if calls < 3 {
				return 0, errors.New("timeout")
			}
			return 42, nil
		})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancelsBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, Policy{MaxRetries: 5, BaseDelay: time.Hour},
		func(error) bool { return true }, nil,
		func() (string, error) {
			calls++
			return "", errors.New("timeout")
		})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_BackoffDoubles(t *testing.T) {
	var delays []time.Duration
	_, _ = Do(context.Background(), Policy{MaxRetries: 3, BaseDelay: time.Millisecond},
		func(error) bool { return true },
		func(attempt int, delay time.Duration, err error) { delays = append(delays, delay) },
		func() (string, error) {
			return "", errors.New("timeout")
		})

	require.Len(t, delays, 3)
	assert.Equal(t, time.Millisecond, delays[0])
	assert.Equal(t, 2*time.Millisecond, delays[1])
	assert.Equal(t, 4*time.Millisecond, delays[2])
}
