package counter

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRedisStore connects to the Redis instance named by BOTGATE_TEST_REDIS_ADDR,
// skipping the test when the variable is unset.
func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("BOTGATE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BOTGATE_TEST_REDIS_ADDR not set; skipping Redis integration test")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	store, err := NewRedisStore(context.Background(), client)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// testKey returns a key unique to this test run so parallel runs do not
// share windows.
func testKey(t *testing.T) string {
	return fmt.Sprintf("test:%s:%d", t.Name(), time.Now().UnixNano())
}

func TestRedisStore_AllowsUpToLimit(t *testing.T) {
	store := newTestRedisStore(t)
	key := testKey(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := store.Increment(ctx, key, 10*time.Second, 5)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d should be allowed", i)
		assert.Equal(t, int64(i), res.Count)
	}

	res, err := store.Increment(ctx, key, 10*time.Second, 5)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(6), res.Count)
	assert.Equal(t, 0, res.Remaining)
}

func TestRedisStore_WindowSlides(t *testing.T) {
	store := newTestRedisStore(t)
	key := testKey(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := store.Increment(ctx, key, 300*time.Millisecond, 3)
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := store.Increment(ctx, key, 300*time.Millisecond, 3)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(350 * time.Millisecond)

	res, err = store.Increment(ctx, key, 300*time.Millisecond, 3)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "old entries should have slid out of the window")
	assert.Equal(t, int64(1), res.Count)
}

func TestRedisStore_ConcurrentIncrements(t *testing.T) {
	store := newTestRedisStore(t)
	key := testKey(t)
	ctx := context.Background()

	const n = 50
	const limit = 20

	var wg sync.WaitGroup
	var allowed atomic.Int64
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Increment(ctx, key, 10*time.Second, limit)
			assert.NoError(t, err)
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), allowed.Load())
}

func TestRedisStore_ErrorWhenContextCancelled(t *testing.T) {
	store := newTestRedisStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Increment(ctx, testKey(t), time.Second, 5)
	assert.Error(t, err)
}
