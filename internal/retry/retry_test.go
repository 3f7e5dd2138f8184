package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteInvokesExactlyKPlusOneTimesOnAlwaysRetryable(t *testing.T) {
	cfg := Config{MaxRetries: 3, Strategy: Fixed, Base: time.Millisecond, Jitter: 0}
	h := New(cfg, func(res *Result, err error) bool { return true })

	calls := 0
	_, err := h.Execute(context.Background(), func(ctx context.Context, attempt int) (*Result, error) {
		calls++
		return &Result{Success: false}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 0, h.AttemptsRemaining())
}

func TestExecuteStopsOnFirstSuccess(t *testing.T) {
	cfg := Config{MaxRetries: 5, Strategy: Fixed, Base: time.Millisecond}
	h := New(cfg, nil)

	calls := 0
	res, err := h.Execute(context.Background(), func(ctx context.Context, attempt int) (*Result, error) {
		calls++
		if calls < 3 {
			return &Result{Success: false, StatusCode: 503}, nil
		}
		return &Result{Success: true, HTML: string(make([]byte, 600))}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, res.Success)
}

func TestExponentialDelayAccumulatesAtLeastExpected(t *testing.T) {
	cfg := Config{MaxRetries: 3, Strategy: Exponential, Base: time.Second, Factor: 2.0, Jitter: 0}
	h := New(cfg, nil)

	var slept time.Duration
	h.sleep = func(ctx context.Context, d time.Duration) error {
		slept += d
		return nil
	}

	calls := 0
	_, _ = h.Execute(context.Background(), func(ctx context.Context, attempt int) (*Result, error) {
		calls++
		if calls <= 2 {
			return &Result{Success: false, StatusCode: 503}, nil
		}
		return &Result{Success: true, HTML: string(make([]byte, 600))}, nil
	})

	assert.GreaterOrEqual(t, slept, 3*time.Second)
}

func TestNonRetryableErrorPropagatesImmediately(t *testing.T) {
	cfg := Config{MaxRetries: 5, Strategy: Fixed, Base: time.Millisecond}
	h := New(cfg, nil)

	calls := 0
	_, err := h.Execute(context.Background(), func(ctx context.Context, attempt int) (*Result, error) {
		calls++
		return nil, assertConfigErr()
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func assertConfigErr() error {
	return configErrForTest()
}
