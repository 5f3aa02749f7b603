package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, nil)
}

func TestLimiter_AllowsWithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.CheckAndIncrement(ctx, "rl:api:key1", 3, time.Minute)
		require.NoError(t, err)
		require.True(t, ok, "request %d should be within limit", i+1)
	}
}

func TestLimiter_RejectsOverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.CheckAndIncrement(ctx, "rl:api:key2", 3, time.Minute)
		require.NoError(t, err)
	}

	ok, err := l.CheckAndIncrement(ctx, "rl:api:key2", 3, time.Minute)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLimiter_FailsOpenWithoutBackingStore(t *testing.T) {
	l := New(nil, nil)
	ok, err := l.CheckAndIncrement(context.Background(), "rl:org:anything", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_DistinctKeysDoNotShareCounters(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	ok1, err := l.CheckAndIncrement(ctx, "rl:org:a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := l.CheckAndIncrement(ctx, "rl:org:b", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok2)
}

func TestKeyBuilders(t *testing.T) {
	require.Equal(t, "rl:api:abc", KeyForAPIKey("abc"))
	require.Equal(t, "rl:org:xyz", KeyForOrg("xyz"))
}
