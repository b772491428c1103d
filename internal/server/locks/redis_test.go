package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DariusIMP/publish3-backend/internal/common"
	"github.com/DariusIMP/publish3-backend/internal/logging"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Minute, time.Millisecond, logging.Nop{}), mr
}

func TestRedisLocker_Exclusive(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	exercise(t, l)
	assert.False(t, mr.Exists(keyPrefix+"0xa11ce"))
}

func TestRedisLocker_SetsTTL(t *testing.T) {
	l, mr := newTestRedisLocker(t)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"k"))
	assert.Equal(t, time.Minute, mr.TTL(keyPrefix+"k"))

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"k"))
}

func TestRedisLocker_ExpiredLockIsNotStolenBack(t *testing.T) {
	l, mr := newTestRedisLocker(t)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)

	// the lock expires and someone else takes it
	mr.FastForward(2 * time.Minute)
	require.NoError(t, mr.Set(keyPrefix+"k", "other-holder"))

	unlock()
	v, err := mr.Get(keyPrefix + "k")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", v)
}

func TestRedisLocker_ContextCancel(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	require.NoError(t, mr.Set(keyPrefix+"k", "someone"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := l.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker_ServerDown(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	mr.Close()

	_, err := l.Lock(context.Background(), "k")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNetwork))
}

func TestNewRedisClient(t *testing.T) {
	c, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Options().DB)
	_ = c.Close()

	_, err = NewRedisClient("http://nope")
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
