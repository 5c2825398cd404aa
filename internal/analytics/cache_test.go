package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediavault/backend/internal/metrics"
	"github.com/mediavault/backend/internal/models"
)

func TestRedisCacheRoundTrip(t *testing.T) {
	cache, _ := newMiniredisCache(t)
	ctx := context.Background()

	_, ok := cache.Get(ctx, 1)
	assert.False(t, ok)

	snap := &models.AnalyticsSnapshot{
		MediaID:     1,
		Title:       "intro",
		TotalViews:  3,
		UniqueIPs:   2,
		ViewsPerDay: map[string]int64{"2026-03-10": 3},
		ComputedAt:  testNow,
	}
	cache.Put(ctx, snap)

	got, ok := cache.Get(ctx, 1)
	require.True(t, ok)
	assert.Equal(t, snap.TotalViews, got.TotalViews)
	assert.Equal(t, snap.ViewsPerDay, got.ViewsPerDay)
	assert.True(t, snap.ComputedAt.Equal(got.ComputedAt))

	cache.Invalidate(ctx, 1)
	_, ok = cache.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, CacheHealthy, cache.Status(ctx))
}

func TestRedisCacheCorruptEntryIsMiss(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	require.NoError(t, mr.Set(Key(5), "{not json"))

	_, ok := cache.Get(context.Background(), 5)
	assert.False(t, ok)
}

func TestRedisCacheBreakerOpens(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := NewRedisCache(rdb, RedisCacheOptions{
		OpTimeout:        100 * time.Millisecond,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}, nil)
	ctx := context.Background()
	mr.Close()

	before := testutil.ToFloat64(metrics.CacheResults.WithLabelValues("error"))
	for i := 0; i < 3; i++ {
		_, ok := cache.Get(ctx, 1)
		assert.False(t, ok)
	}
	assert.Equal(t, CacheOpen, cache.Status(ctx))

	// Open breaker short-circuits without touching the network.
	start := time.Now()
	cache.Put(ctx, &models.AnalyticsSnapshot{MediaID: 1})
	cache.Invalidate(ctx, 1)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, before+5, testutil.ToFloat64(metrics.CacheResults.WithLabelValues("error")))
}

func TestRedisCacheStatusError(t *testing.T) {
	cache, mr := newMiniredisCache(t)
	mr.Close()
	assert.Equal(t, CacheError, cache.Status(context.Background()))
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	ctx := context.Background()
	c.Put(ctx, &models.AnalyticsSnapshot{MediaID: 1})
	_, ok := c.Get(ctx, 1)
	assert.False(t, ok)
	assert.Equal(t, CacheDisabled, c.Status(ctx))
}
