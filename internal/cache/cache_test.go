package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "streamscout:sources:3", SourceKey(3))
	assert.Equal(t, "streamscout:locks:check:7", CheckLockKey(7))
	assert.Equal(t, "streamscout:jobs:checks", DefaultQueue)
}

func TestNew_BadURL(t *testing.T) {
	_, err := New("not-a-redis-url")
	assert.Error(t, err)
}

// testRedis connects to STREAMSCOUT_TEST_REDIS or skips.
func testRedis(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("STREAMSCOUT_TEST_REDIS")
	if url == "" {
		t.Skip("STREAMSCOUT_TEST_REDIS not set")
	}
	r, err := New(url)
	require.NoError(t, err)
	require.NoError(t, r.Ping(context.Background()))
	t.Cleanup(func() {
		_ = DelPattern(context.Background(), r, Key("test", "*"))
		r.Close()
	})
	return r
}

func TestSetGet(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := Key("test", "value")

	require.NoError(t, Set(ctx, r, key, map[string]int{"a": 1}, time.Minute))
	got, err := Get[map[string]int](ctx, r, key)
	require.NoError(t, err)
	assert.Equal(t, 1, got["a"])

	require.NoError(t, Del(ctx, r, key))
	_, err = Get[map[string]int](ctx, r, key)
	assert.True(t, IsMiss(err))
}

func TestTryLock(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	key := Key("test", "lock")

	unlock, err := TryLock(ctx, r, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, IsLocked(ctx, r, key))

	_, err = TryLock(ctx, r, key, time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	unlock()
	assert.False(t, IsLocked(ctx, r, key))
}

func TestQueue(t *testing.T) {
	r := testRedis(t)
	ctx := context.Background()
	queue := Key("test", "queue")

	require.NoError(t, Enqueue(ctx, r, queue, CheckJob{Kind: JobCheck, SourceID: 1}))
	require.NoError(t, Enqueue(ctx, r, queue, CheckJob{Kind: JobRefresh, SourceID: 2}))
	n, err := QueueLen(ctx, r, queue)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	job, err := Dequeue(ctx, r, queue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, int64(1), job.SourceID)
	assert.False(t, job.EnqueuedAt.IsZero())

	job, err = Dequeue(ctx, r, queue, time.Second)
	require.NoError(t, err)
	assert.Equal(t, JobRefresh, job.Kind)

	job, err = Dequeue(ctx, r, queue, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, job)
}
