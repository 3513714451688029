package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FirstRequestWithinBurst(t *testing.T) {
	rl := NewRateLimiter(10.0, 1)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimiter_Throttles(t *testing.T) {
	rl := NewRateLimiter(10.0, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(ctx), "request %d", i)
	}
	// burst of one, then two 100ms gaps
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestRateLimiter_ContextCanceled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	_ = rl.Wait(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiter_FloodWaitBlocks(t *testing.T) {
	rl := NewRateLimiter(10.0, 1)
	rl.SetFloodWait(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.InDelta(t, 200*time.Millisecond, elapsed, float64(60*time.Millisecond))
}

func TestRateLimiter_ExpiredFloodWait(t *testing.T) {
	rl := NewRateLimiter(10.0, 1)
	rl.floodWaitUntil = time.Now().Add(-100 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.LessOrEqual(t, rl.FloodWaitRemaining(), time.Duration(0))
}

func TestRateLimiter_SetFloodWait_KeepsLongerWait(t *testing.T) {
	rl := NewRateLimiter(10.0, 1)

	rl.SetFloodWait(time.Minute)
	rl.SetFloodWait(time.Second)

	assert.Greater(t, rl.FloodWaitRemaining(), 50*time.Second)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	for _, rl := range []*RateLimiter{NewRateLimiter(0, 0), DefaultRateLimiter()} {
		require.NotNil(t, rl)
		assert.NoError(t, rl.Wait(context.Background()))
	}
}
