package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreWithClient(client, ""), mr
}

func TestRedisStore_AcquireRelease(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := s.Acquire(ctx, "acct:trk_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("labelrelay:printed:acct:trk_1"))

	ok, err = s.Acquire(ctx, "acct:trk_1", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "acct:trk_1"))
	assert.False(t, mr.Exists("labelrelay:printed:acct:trk_1"))

	ok, err = s.Acquire(ctx, "acct:trk_1", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := s.Acquire(ctx, "k", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, mr.TTL("labelrelay:printed:k"))

	mr.FastForward(11 * time.Minute)

	ok, err := s.Acquire(ctx, "k", 10*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_BackendDown(t *testing.T) {
	s, mr := newRedisStore(t)
	mr.Close()

	_, err := s.Acquire(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestNewRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
