package repository

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisRepo(t *testing.T) (*RedisCoordinationRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCoordinationRepository(client), mr
}

func TestSettlementLockIsExclusive(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()

	ok, err := repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must lose while the lock is held")

	// A different booking gets its own lock.
	ok, err = repo.AcquireSettlementLock(ctx, "BKG-002", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ReleaseSettlementLock(ctx, "BKG-001"))
	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSettlementLockExpires(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	ok, err := repo.AcquireSettlementLock(ctx, "BKG-001", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(3 * time.Second)

	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 2*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "a crashed holder must not wedge the booking past the TTL")
}

func TestPublishFeedChange(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	sub := mr.NewSubscriber()
	defer sub.Close()
	sub.Subscribe(FeedChannel)

	// The direct subscriber's channel is unbuffered, so a reader must be
	// draining it before the synchronous publish or the server deadlocks.
	received := make(chan miniredis.PubsubMessage, 1)
	go func() {
		for msg := range sub.Messages() {
			received <- msg
		}
	}()

	require.NoError(t, repo.PublishFeedChange(ctx, "customer:ana@example.com"))

	select {
	case msg := <-received:
		assert.Equal(t, FeedChannel, msg.Channel)
		assert.Equal(t, "customer:ana@example.com", msg.Message)
	case <-time.After(time.Second):
		t.Fatal("no feed change message received")
	}
}

func TestCheckRateLimitWindow(t *testing.T) {
	repo, mr := newRedisRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := repo.CheckRateLimit(ctx, "client-a", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	ok, err := repo.CheckRateLimit(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "fourth call in the window is over the limit")

	// Independent key is unaffected.
	ok, err = repo.CheckRateLimit(ctx, "client-b", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = repo.CheckRateLimit(ctx, "client-a", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "counter resets after the window")
}

func TestMemoryRateLimitCountsConcurrentCallers(t *testing.T) {
	repo := NewMemoryCoordinationRepository()
	ctx := context.Background()

	const limit = 5
	var wg sync.WaitGroup
	var admitted atomic.Int64

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.CheckRateLimit(ctx, "login:ana@example.com", limit, time.Minute)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(limit), admitted.Load(), "every attempt is counted exactly once")
}

func TestMemoryLockExclusiveAndExpiring(t *testing.T) {
	repo := NewMemoryCoordinationRepository()
	ctx := context.Background()

	ok, err := repo.AcquireSettlementLock(ctx, "BKG-001", 50*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(60 * time.Millisecond)

	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFailoverFallsBackToMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(os.Stdout)
	repo := NewFailoverCoordinationRepository(
		NewRedisCoordinationRepository(client),
		NewMemoryCoordinationRepository(),
		&logger,
	)
	ctx := context.Background()

	ok, err := repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, repo.ReleaseSettlementLock(ctx, "BKG-001"))

	mr.Close()

	// Primary is gone; the lock still works in-process.
	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AcquireSettlementLock(ctx, "BKG-001", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}
