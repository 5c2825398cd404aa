package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/metrics"
	"github.com/mediavault/backend/internal/models"
)

// Cache status values reported by Status.
const (
	CacheHealthy  = "healthy"
	CacheError    = "error"
	CacheOpen     = "open"
	CacheDisabled = "disabled"
)

// Cache memoizes analytics snapshots. Implementations absorb backend failures:
// Get reports a miss and Put/Invalidate become no-ops.
type Cache interface {
	Get(ctx context.Context, mediaID int64) (*models.AnalyticsSnapshot, bool)
	Put(ctx context.Context, snap *models.AnalyticsSnapshot)
	Invalidate(ctx context.Context, mediaID int64)
	Status(ctx context.Context) string
}

// NopCache is used when caching is disabled. Every Get is a miss.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*models.AnalyticsSnapshot, bool) { return nil, false }
func (NopCache) Put(context.Context, *models.AnalyticsSnapshot)              {}
func (NopCache) Invalidate(context.Context, int64)                           {}
func (NopCache) Status(context.Context) string                               { return CacheDisabled }

// RedisCacheOptions tunes RedisCache. Zero values take the defaults.
type RedisCacheOptions struct {
	TTL              time.Duration // default 300s
	OpTimeout        time.Duration // default 250ms
	FailureThreshold uint32        // consecutive failures before the breaker opens, default 5
	OpenTimeout      time.Duration // time before a half-open probe, default 30s
}

// RedisCache stores snapshots as JSON under analytics:media:{id}. Every call
// runs under OpTimeout and through a circuit breaker so an unreachable server
// costs at most one timeout per call until the breaker opens.
type RedisCache struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewRedisCache creates a Redis-backed analytics cache.
func NewRedisCache(rdb redis.UniversalClient, opts RedisCacheOptions, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 250 * time.Millisecond
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 30 * time.Second
	}
	c := &RedisCache{rdb: rdb, ttl: opts.TTL, timeout: opts.OpTimeout, logger: logger}
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "analytics-cache",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, redis.Nil)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Key returns the cache key for a media asset.
func Key(mediaID int64) string {
	return "analytics:media:" + strconv.FormatInt(mediaID, 10)
}

// Get returns the cached snapshot, or false on miss or any backend failure.
func (c *RedisCache) Get(ctx context.Context, mediaID int64) (*models.AnalyticsSnapshot, bool) {
	raw, err := c.do(ctx, func(ctx context.Context) ([]byte, error) {
		return c.rdb.Get(ctx, Key(mediaID)).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.fail("get", mediaID, err)
		}
		return nil, false
	}
	var snap models.AnalyticsSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.fail("decode", mediaID, err)
		return nil, false
	}
	return &snap, true
}

// Put stores snap with the configured TTL. Failures are logged and dropped.
func (c *RedisCache) Put(ctx context.Context, snap *models.AnalyticsSnapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		c.fail("encode", snap.MediaID, err)
		return
	}
	_, err = c.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, c.rdb.Set(ctx, Key(snap.MediaID), raw, c.ttl).Err()
	})
	if err != nil {
		c.fail("set", snap.MediaID, err)
	}
}

// Invalidate removes the snapshot for mediaID. Failures are logged and dropped;
// the entry then lapses with its TTL.
func (c *RedisCache) Invalidate(ctx context.Context, mediaID int64) {
	_, err := c.do(ctx, func(ctx context.Context) ([]byte, error) {
		return nil, c.rdb.Del(ctx, Key(mediaID)).Err()
	})
	if err != nil {
		c.fail("invalidate", mediaID, err)
	}
}

// Status reports open while the breaker is open, otherwise pings the server.
func (c *RedisCache) Status(ctx context.Context) string {
	if c.cb.State() == gobreaker.StateOpen {
		return CacheOpen
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return CacheError
	}
	return CacheHealthy
}

func (c *RedisCache) do(ctx context.Context, op func(context.Context) ([]byte, error)) ([]byte, error) {
	return c.cb.Execute(func() ([]byte, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return op(ctx)
	})
}

func (c *RedisCache) fail(op string, mediaID int64, err error) {
	metrics.CacheResults.WithLabelValues("error").Inc()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Debug("cache skipped, breaker open", zap.String("op", op), zap.Int64("media_id", mediaID))
		return
	}
	c.logger.Warn("cache operation failed", zap.String("op", op), zap.Int64("media_id", mediaID), zap.Error(err))
}
