package redislock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bobmcallan/stacker/internal/common"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLockers(t *testing.T) (*miniredis.Miniredis, *Locker, *Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := common.NewSilentLogger()

	a := NewLockerWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	b := NewLockerWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), logger)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return mr, a, b
}

func TestLocker_ExclusiveUntilUnlock(t *testing.T) {
	_, a, b := newTestLockers(t)
	ctx := context.Background()

	ok, err := a.TryLock(ctx, "sweep:2026-02-05", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, "sweep:2026-02-05", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock(ctx, "sweep:2026-02-05"))

	ok, err = b.TryLock(ctx, "sweep:2026-02-05", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocker_UnlockByOtherHolderIsNoop(t *testing.T) {
	mr, a, b := newTestLockers(t)
	ctx := context.Background()

	ok, err := a.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, b.Unlock(ctx, "k"))
	assert.True(t, mr.Exists(keyPrefix+"k"))
}

func TestLocker_Expires(t *testing.T) {
	mr, a, b := newTestLockers(t)
	ctx := context.Background()

	ok, err := a.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	ok, err = b.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewLocker_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewLocker(context.Background(), common.RedisConfig{Address: addr}, common.NewSilentLogger())
	assert.Error(t, err)
}
