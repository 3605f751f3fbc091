package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisKV) {
	mr := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return mr, NewRedisKV(c)
}

func TestRedisKV_GetMiss(t *testing.T) {
	_, kv := setupTestRedis(t)

	_, err := kv.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisKV_DeleteIfEquals(t *testing.T) {
	mr, kv := setupTestRedis(t)
	ctx := context.Background()

	ok, err := kv.SetNX(ctx, "k", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	deleted, err := kv.DeleteIfEquals(ctx, "k", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, mr.Exists("k"))

	deleted, err = kv.DeleteIfEquals(ctx, "k", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, mr.Exists("k"))
}

func TestDecisionLock_SecondAcquireRefused(t *testing.T) {
	mr, kv := setupTestRedis(t)
	lock := NewDecisionLock(kv, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	release, ok := lock.Acquire(ctx, "p1")
	require.True(t, ok)
	assert.True(t, mr.Exists(DecisionLockKey("p1")))
	assert.Equal(t, 30*time.Second, mr.TTL(DecisionLockKey("p1")))

	_, ok = lock.Acquire(ctx, "p1")
	assert.False(t, ok)

	_, ok = lock.Acquire(ctx, "p2")
	assert.True(t, ok)

	release()
	assert.False(t, mr.Exists(DecisionLockKey("p1")))

	_, ok = lock.Acquire(ctx, "p1")
	assert.True(t, ok)
}

func TestDecisionLock_ExpiresAfterTTL(t *testing.T) {
	mr, kv := setupTestRedis(t)
	lock := NewDecisionLock(kv, 5*time.Second, zap.NewNop())
	ctx := context.Background()

	_, ok := lock.Acquire(ctx, "p1")
	require.True(t, ok)

	mr.FastForward(6 * time.Second)

	_, ok = lock.Acquire(ctx, "p1")
	assert.True(t, ok)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (brokenKV) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("down")
}
func (brokenKV) DeleteIfEquals(context.Context, string, string) (bool, error) {
	return false, errors.New("down")
}

func TestDecisionLock_RedisDownProceeds(t *testing.T) {
	lock := NewDecisionLock(brokenKV{}, time.Second, zap.NewNop())

	release, ok := lock.Acquire(context.Background(), "p1")
	assert.True(t, ok)
	release()
}
