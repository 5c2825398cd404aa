package views

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediavault/backend/internal/models"
)

// ErrMediaNotFound is returned when an event references a missing media asset.
var ErrMediaNotFound = errors.New("media not found")

// Repository is the append-only media_view_logs table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a view log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts one view event. The foreign key rejects events for assets
// that do not exist or were deleted concurrently.
func (r *Repository) Append(ctx context.Context, mediaID int64, viewerIP string, at time.Time) (*models.ViewEvent, error) {
	const q = `INSERT INTO media_view_logs (media_id, viewer_ip, viewed_at) VALUES ($1, $2, $3)
		RETURNING id, media_id, viewer_ip, viewed_at`
	var ev models.ViewEvent
	err := r.pool.QueryRow(ctx, q, mediaID, viewerIP, at.UTC()).
		Scan(&ev.ID, &ev.MediaID, &ev.ViewerIP, &ev.ViewedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("insert view: %w", err)
	}
	return &ev, nil
}

// Buckets returns per (viewer, UTC date) view counts for a media asset.
func (r *Repository) Buckets(ctx context.Context, mediaID int64) ([]models.ViewBucket, error) {
	const q = `SELECT viewer_ip, (viewed_at AT TIME ZONE 'UTC')::date AS day, COUNT(*)
		FROM media_view_logs WHERE media_id = $1
		GROUP BY viewer_ip, day`
	rows, err := r.pool.Query(ctx, q, mediaID)
	if err != nil {
		return nil, fmt.Errorf("query view buckets: %w", err)
	}
	defer rows.Close()
	var out []models.ViewBucket
	for rows.Next() {
		var b models.ViewBucket
		if err := rows.Scan(&b.ViewerIP, &b.Day, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListByMedia returns the most recent view events for a media asset, newest first.
func (r *Repository) ListByMedia(ctx context.Context, mediaID int64, limit int) ([]models.ViewEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, media_id, viewer_ip, viewed_at FROM media_view_logs
		 WHERE media_id = $1 ORDER BY viewed_at DESC, id DESC LIMIT $2`,
		mediaID, limit)
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()
	list := make([]models.ViewEvent, 0)
	for rows.Next() {
		var ev models.ViewEvent
		if err := rows.Scan(&ev.ID, &ev.MediaID, &ev.ViewerIP, &ev.ViewedAt); err != nil {
			return nil, err
		}
		list = append(list, ev)
	}
	return list, rows.Err()
}
