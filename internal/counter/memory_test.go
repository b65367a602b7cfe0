package counter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_AllowsUpToLimit(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	for i := 1; i <= 10; i++ {
		res, err := store.Increment(ctx, "general:203.0.113.7", 10*time.Second, 10)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(i), res.Count)
		assert.Equal(t, 10-i, res.Remaining)
	}

	res, err := store.Increment(ctx, "general:203.0.113.7", 10*time.Second, 10)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(11), res.Count)
	assert.Equal(t, 0, res.Remaining)
}

func TestMemoryStore_CountCappedAtLimitPlusOne(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		store.Increment(ctx, "k", time.Minute, 5)
	}
	res, err := store.Increment(ctx, "k", time.Minute, 5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(6), res.Count)
}

func TestMemoryStore_WindowReset(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	ctx := context.Background()
	for i := 0; i < 11; i++ {
		store.Increment(ctx, "k", 10*time.Second, 10)
	}
	res, _ := store.Increment(ctx, "k", 10*time.Second, 10)
	require.False(t, res.Allowed)
	assert.Equal(t, current.Add(10*time.Second), res.ResetAt)

	// One tick past the window boundary: fresh window, count 1.
	current = current.Add(10*time.Second + time.Millisecond)
	res, err := store.Increment(ctx, "k", 10*time.Second, 10)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.Count)
	assert.Equal(t, 9, res.Remaining)
	assert.Equal(t, current.Add(10*time.Second), res.ResetAt)
}

func TestMemoryStore_ResetExactlyAtBoundary(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	ctx := context.Background()
	store.Increment(ctx, "k", 10*time.Second, 10)

	// now == windowStart + window counts as a new window.
	current = current.Add(10 * time.Second)
	res, err := store.Increment(ctx, "k", 10*time.Second, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Count)
}

func TestMemoryStore_IndependentKeys(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.Increment(ctx, "ai_chat:203.0.113.7", time.Minute, 5)
	}
	res, _ := store.Increment(ctx, "ai_chat:203.0.113.7", time.Minute, 5)
	require.False(t, res.Allowed)

	res, _ = store.Increment(ctx, "general:203.0.113.7", time.Minute, 5)
	assert.True(t, res.Allowed, "a different endpoint class has its own bucket")

	res, _ = store.Increment(ctx, "ai_chat:198.51.100.4", time.Minute, 5)
	assert.True(t, res.Allowed, "a different identity has its own bucket")
}

func TestMemoryStore_ConcurrentIncrementsDoNotLoseUpdates(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	const n = 200
	ctx := context.Background()

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Increment(ctx, "k", time.Minute, n)
			assert.NoError(t, err)
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// All increments within the limit: every one must be counted.
	assert.Equal(t, int64(n), allowed.Load())
	res, err := store.Increment(ctx, "k", time.Minute, n+1)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), res.Count)
}

func TestMemoryStore_ConcurrentIncrementsNeverExceedLimit(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()

	const n = 100
	const limit = 30
	ctx := context.Background()

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Increment(ctx, "k", time.Minute, limit)
			assert.NoError(t, err)
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

func TestMemoryStore_SweepEvictsExpiredBuckets(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	store.Increment(ctx, "ephemeral", 10*time.Millisecond, 10)
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "expired bucket should be swept")
}

func TestMemoryStore_SweepKeepsLiveBuckets(t *testing.T) {
	store := NewMemoryStore(20 * time.Millisecond)
	defer store.Close()

	ctx := context.Background()
	store.Increment(ctx, "live", time.Hour, 10)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
