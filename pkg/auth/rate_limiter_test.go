package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketLimiter_BurstThenRefill(t *testing.T) {
	l := NewTokenBucketLimiter(60, 0)
	defer l.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		ok, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		require.True(t, ok, "request %d within burst", i)
	}
	ok, _ := l.Allow(ctx, "u1")
	assert.False(t, ok, "burst exhausted")

	other, _ := l.Allow(ctx, "u2")
	assert.True(t, other, "keys are independent")

	now = now.Add(time.Second)
	ok, _ = l.Allow(ctx, "u1")
	assert.True(t, ok, "one token refills per second")
}

func TestTokenBucketLimiter_ResetAndSweep(t *testing.T) {
	l := NewTokenBucketLimiter(1, 0)
	defer l.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.idleTTL = time.Minute
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "k")
	require.True(t, ok)
	ok, _ = l.Allow(ctx, "k")
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "k"))
	ok, _ = l.Allow(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	l.sweep()
	assert.Empty(t, l.buckets)
}

func TestTokenBucketLimiter_CancelledContext(t *testing.T) {
	l := NewTokenBucketLimiter(10, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Allow(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUserRateLimiter(t *testing.T) {
	l := NewUserRateLimiter(2)
	defer l.Close()
	ctx := context.Background()

	assert.Equal(t, 2, l.Limit())
	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := l.Allow(ctx, "alice")
	assert.False(t, ok)

	require.NoError(t, l.Reset(ctx, "alice"))
	ok, _ = l.Allow(ctx, "alice")
	assert.True(t, ok)
}
