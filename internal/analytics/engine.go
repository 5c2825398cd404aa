// Package analytics records view events and derives per-asset statistics,
// with an optional cache in front of the recomputation.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mediavault/backend/internal/media"
	"github.com/mediavault/backend/internal/metrics"
	"github.com/mediavault/backend/internal/models"
	"github.com/mediavault/backend/internal/views"
)

// ErrMediaNotFound is returned by LogView and Compute for unknown media ids.
var ErrMediaNotFound = errors.New("media not found")

// View sources, used as the views_logged metric label.
const (
	SourceManual = "manual"
	SourceStream = "stream"
)

const dayLayout = "2006-01-02"

// MediaLookup resolves media assets.
type MediaLookup interface {
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
}

// ViewLog is the append-only event store.
type ViewLog interface {
	Append(ctx context.Context, mediaID int64, viewerIP string, at time.Time) (*models.ViewEvent, error)
	Buckets(ctx context.Context, mediaID int64) ([]models.ViewBucket, error)
}

// Notifier is told about every recorded event. It must not block.
type Notifier interface {
	PublishView(ctx context.Context, ev models.ViewEvent)
}

// Options configures an Engine. Zero values take the defaults.
type Options struct {
	StoreTimeout time.Duration // default 5s
	WindowDays   int           // per-day window including today, default 7
	Now          func() time.Time
}

// Engine implements view logging and analytics computation.
type Engine struct {
	media        MediaLookup
	views        ViewLog
	cache        Cache
	notifier     Notifier
	storeTimeout time.Duration
	windowDays   int
	now          func() time.Time
	logger       *zap.Logger
}

// NewEngine creates an analytics engine. A nil cache disables caching.
func NewEngine(mediaStore MediaLookup, viewLog ViewLog, cache Cache, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NopCache{}
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = 7
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		media:        mediaStore,
		views:        viewLog,
		cache:        cache,
		storeTimeout: opts.StoreTimeout,
		windowDays:   opts.WindowDays,
		now:          opts.Now,
		logger:       logger,
	}
}

// SetNotifier registers the live feed publisher. Call before serving.
func (e *Engine) SetNotifier(n Notifier) {
	e.notifier = n
}

// CacheStatus reports the cache backend state for health checks.
func (e *Engine) CacheStatus(ctx context.Context) string {
	return e.cache.Status(ctx)
}

// LogView appends a view event for mediaID and invalidates its cached snapshot.
// Nothing is persisted when the media does not exist.
func (e *Engine) LogView(ctx context.Context, mediaID int64, viewerIP, source string) (*models.ViewEvent, error) {
	if _, err := e.lookup(ctx, mediaID); err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	ev, err := e.views.Append(sctx, mediaID, viewerIP, e.now().UTC())
	cancel()
	if err != nil {
		if errors.Is(err, views.ErrMediaNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("append view: %w", err)
	}

	e.cache.Invalidate(ctx, mediaID)
	if e.notifier != nil {
		e.notifier.PublishView(ctx, *ev)
	}
	metrics.ViewsLogged.WithLabelValues(source).Inc()
	e.logger.Debug("view logged",
		zap.Int64("media_id", mediaID),
		zap.String("viewer_ip", viewerIP),
		zap.String("source", source),
	)
	return ev, nil
}

// Analytics returns the snapshot for mediaID, from cache when possible.
// cached reports whether the snapshot came from the cache.
func (e *Engine) Analytics(ctx context.Context, mediaID int64) (snap *models.AnalyticsSnapshot, cached bool, err error) {
	if snap, ok := e.cache.Get(ctx, mediaID); ok {
		metrics.CacheResults.WithLabelValues("hit").Inc()
		e.logger.Debug("analytics cache hit", zap.Int64("media_id", mediaID))
		return snap, true, nil
	}
	metrics.CacheResults.WithLabelValues("miss").Inc()
	e.logger.Debug("analytics cache miss", zap.Int64("media_id", mediaID))

	snap, err = e.Compute(ctx, mediaID)
	if err != nil {
		return nil, false, err
	}
	e.cache.Put(ctx, snap)
	return snap, false, nil
}

// Compute derives the snapshot for mediaID from the view log, bypassing the cache.
func (e *Engine) Compute(ctx context.Context, mediaID int64) (*models.AnalyticsSnapshot, error) {
	asset, err := e.lookup(ctx, mediaID)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	buckets, err := e.views.Buckets(sctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("load view buckets: %w", err)
	}

	now := e.now().UTC()
	sum := Summarize(buckets, now, e.windowDays)
	return &models.AnalyticsSnapshot{
		MediaID:     asset.ID,
		Title:       asset.Title,
		TotalViews:  sum.Total,
		UniqueIPs:   sum.Unique,
		RecentViews: sum.Recent,
		ViewsPerDay: sum.PerDay,
		UploadedAt:  asset.CreatedAt,
		ComputedAt:  now,
	}, nil
}

// Invalidate drops the cached snapshot for mediaID.
func (e *Engine) Invalidate(ctx context.Context, mediaID int64) {
	e.cache.Invalidate(ctx, mediaID)
}

func (e *Engine) lookup(ctx context.Context, mediaID int64) (*models.MediaAsset, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	asset, err := e.media.GetByID(ctx, mediaID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("lookup media: %w", err)
	}
	return asset, nil
}

// Summary is the aggregate over a media asset's view buckets.
type Summary struct {
	Total  int64
	Unique int64
	Recent int64
	PerDay map[string]int64
}

// Summarize aggregates buckets. PerDay and Recent cover the windowDays UTC
// dates ending with today's; older days only count toward Total and Unique.
func Summarize(buckets []models.ViewBucket, today time.Time, windowDays int) Summary {
	y, m, d := today.UTC().Date()
	end := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -(windowDays - 1))

	sum := Summary{PerDay: make(map[string]int64)}
	viewers := make(map[string]struct{})
	for _, b := range buckets {
		sum.Total += b.Count
		viewers[b.ViewerIP] = struct{}{}

		by, bm, bd := b.Day.Date()
		day := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
		if day.Before(start) || day.After(end) {
			continue
		}
		sum.PerDay[day.Format(dayLayout)] += b.Count
		sum.Recent += b.Count
	}
	sum.Unique = int64(len(viewers))
	return sum
}
