package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
	"github.com/dmitrijs2005/tokenkeeper/internal/server/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+mr.Addr()+"/0", "tk")
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	mr, c := newRedis(t)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("tk:k"))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("tk:k"))
	require.NoError(t, c.Delete(ctx))

	require.NoError(t, c.Ping(ctx))
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("http://nope", "")
	assert.Error(t, err)
}

func TestGetOrSet_CachesProducerResult(t *testing.T) {
	ctx := context.Background()
	_, c := newRedis(t)
	m := metrics.New(prometheus.NewRegistry())
	a := NewAside(c, logging.Nop{}, m)

	calls := 0
	produce := func(context.Context) (profile, error) {
		calls++
		return profile{ID: 1, Email: "a@x.io"}, nil
	}

	v, err := GetOrSet(ctx, a, "profile:1", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, profile{ID: 1, Email: "a@x.io"}, v)

	v, err = GetOrSet(ctx, a, "profile:1", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.ID)
	assert.Equal(t, 1, calls)

	a.Invalidate(ctx, "profile:1")
	_, err = GetOrSet(ctx, a, "profile:1", time.Minute, produce)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetOrSet_ProducerErrorNotCached(t *testing.T) {
	ctx := context.Background()
	mr, c := newRedis(t)
	a := NewAside(c, logging.Nop{}, nil)
	boom := errors.New("boom")

	_, err := GetOrSet(ctx, a, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{}, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("tk:k"))
}

func TestGetOrSet_RedisDownFallsBackToProducer(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	c, err := NewRedisCache("redis://"+mr.Addr()+"/0", "tk")
	require.NoError(t, err)
	defer c.Close()
	a := NewAside(c, logging.Nop{}, metrics.New(prometheus.NewRegistry()))
	mr.Close()

	v, err := GetOrSet(ctx, a, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{ID: 9}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9), v.ID)

	a.Invalidate(ctx, "k")
}

func TestGetOrSet_UndecodableEntryIsReplaced(t *testing.T) {
	ctx := context.Background()
	mr, c := newRedis(t)
	a := NewAside(c, logging.Nop{}, nil)
	require.NoError(t, mr.Set("tk:k", "{not json"))

	v, err := GetOrSet(ctx, a, "k", time.Minute, func(context.Context) (profile, error) {
		return profile{ID: 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), v.ID)

	raw, err := mr.Get("tk:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"email":""}`, raw)
}

func TestNopCache(t *testing.T) {
	ctx := context.Background()
	a := NewAside(nil, logging.Nop{}, nil)

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := GetOrSet(ctx, a, "k", time.Minute, func(context.Context) (int, error) {
			calls++
			return calls, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
}

func TestRedisCache_FromClient(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "")
	require.NoError(t, c.Set(context.Background(), "raw", []byte("1"), 0))
	assert.True(t, mr.Exists("raw"))
}

func TestMetricsRecorded(t *testing.T) {
	ctx := context.Background()
	_, c := newRedis(t)
	reg := prometheus.NewRegistry()
	a := NewAside(c, logging.Nop{}, metrics.New(reg))

	produce := func(context.Context) (int, error) { return 1, nil }
	_, _ = GetOrSet(ctx, a, "m", time.Minute, produce)
	_, _ = GetOrSet(ctx, a, "m", time.Minute, produce)

	n, err := testutil.GatherAndCount(reg, "tokenkeeper_cache_lookups_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "one series each for hit and miss")
}
