package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{
		RequestsPerSecond: 10,
		BurstSize:         5,
		Enabled:           true,
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 5; i++ {
		assert.NoError(t, limiter.Wait(context.Background()), "request %d should be allowed", i)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	// the next token is 100ms away, beyond this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, limiter.Wait(ctx))

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, limiter.Wait(ctx2))
}

func TestLocalLimiter_WaitHonoursContext(t *testing.T) {
	limiter, err := NewLocalLimiter(Config{RequestsPerSecond: 1, BurstSize: 1, Enabled: true})
	require.NoError(t, err)
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, limiter.Wait(ctx))
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{RequestsPerSecond: 7, Enabled: true}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 7, cfg.BurstSize)

	zero := Config{RequestsPerSecond: 0, Enabled: true}
	require.NoError(t, zero.Validate())
	assert.False(t, zero.Enabled)

	negative := Config{RequestsPerSecond: -1, Enabled: true}
	assert.Error(t, negative.Validate())
}

func TestUnlimited(t *testing.T) {
	limiter := Unlimited()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 100; i++ {
		assert.NoError(t, limiter.Wait(ctx))
	}
}
