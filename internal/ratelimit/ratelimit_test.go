package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsZero(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}

func TestNewRejectsNegative(t *testing.T) {
	_, err := New(-5)
	assert.Error(t, err)
}

func TestAcquireEnforcesMinimumInterval(t *testing.T) {
	l, err := New(120) // 0.5s interval
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond)
}

func TestAcquireRespectsCancellation(t *testing.T) {
	l, err := New(1) // 60s interval, guarantees a wait
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))

	cancelCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = l.Acquire(cancelCtx)
	assert.Error(t, err)
}
