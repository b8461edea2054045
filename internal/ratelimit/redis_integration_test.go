//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aims/internal/clock"
	"aims/internal/ratelimit"
	"aims/pkg/testutil/containers"
)

func TestRedisStoreSlidingWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	store := ratelimit.NewRedisStore(rc.Client, clock.NewSystem())

	require.NoError(t, rc.FlushAll(ctx))

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "ip:10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	// Other keys are unaffected.
	result, err = store.Allow(ctx, "ip:10.0.0.2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisStoreWindowExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	store := ratelimit.NewRedisStore(rc.Client, clock.NewSystem())

	require.NoError(t, rc.FlushAll(ctx))

	result, err := store.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(1100 * time.Millisecond)

	result, err = store.Allow(ctx, "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "window frees up after expiry")
}
