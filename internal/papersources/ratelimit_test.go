package papersources

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(1, 1, 2)

	assert.True(t, rl.bucket(false).Allow())
	assert.True(t, rl.bucket(false).Allow())
	assert.False(t, rl.bucket(false).Allow(), "burst exhausted")
}

func TestRateLimiter_SeparateBuckets(t *testing.T) {
	rl := NewRateLimiter(0.1, 0.1, 1)

	require.True(t, rl.bucket(false).Allow())
	assert.False(t, rl.bucket(false).Allow())
	assert.True(t, rl.bucket(true).Allow(), "keyed bucket is independent of the anonymous one")
	assert.False(t, rl.bucket(true).Allow())
}

func TestRateLimiter_DefaultKeyedRate(t *testing.T) {
	rl := NewRateLimiter(AnonymousRate, 0, 1)
	assert.InDelta(t, KeyedRate, float64(rl.keyed.Limit()), 0.001)

	fast := NewRateLimiter(100, 0, 1)
	assert.InDelta(t, 100.0, float64(fast.keyed.Limit()), 0.001)
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(100, 100, 1)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background(), false))
	require.NoError(t, rl.Wait(context.Background(), false))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiter_WaitContextCanceled(t *testing.T) {
	rl := NewRateLimiter(0.1, 0.1, 1)
	require.True(t, rl.bucket(false).Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx, false))
}

func TestRateLimiter_WaitRequest(t *testing.T) {
	rl := NewRateLimiter(0.1, 0.1, 1)

	keyed, err := http.NewRequest(http.MethodGet, "https://eutils.example/esearch.fcgi?term=x&api_key=k", nil)
	require.NoError(t, err)
	require.NoError(t, rl.WaitRequest(keyed))

	assert.InDelta(t, 1.0, rl.bucket(false).Tokens(), 0.01, "anonymous bucket untouched")
	assert.InDelta(t, 0.0, rl.bucket(true).Tokens(), 0.01)
}
