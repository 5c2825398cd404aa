package media

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediavault/backend/internal/models"
)

// ErrNotFound is returned when no media asset has the requested id.
var ErrNotFound = errors.New("media not found")

// Store is the media metadata store used by the handlers and the analytics engine.
type Store interface {
	Create(ctx context.Context, m *models.MediaAsset) (*models.MediaAsset, error)
	GetByID(ctx context.Context, id int64) (*models.MediaAsset, error)
	List(ctx context.Context, limit, offset int) ([]models.MediaAsset, error)
	Delete(ctx context.Context, id int64) (*models.MediaAsset, error)
}

// Repository handles media_assets persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a media repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const mediaColumns = `id, title, type, content_type, size_bytes, storage_key, created_at`

// Create inserts asset metadata and returns the stored row.
func (r *Repository) Create(ctx context.Context, m *models.MediaAsset) (*models.MediaAsset, error) {
	q := `INSERT INTO media_assets (title, type, content_type, size_bytes, storage_key)
		VALUES ($1, $2, $3, $4, $5) RETURNING ` + mediaColumns
	return scanAsset(r.pool.QueryRow(ctx, q, m.Title, string(m.Type), m.ContentType, m.SizeBytes, m.StorageKey))
}

// GetByID returns an asset by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.MediaAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media_assets WHERE id = $1`, id))
}

// List returns assets newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]models.MediaAsset, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+mediaColumns+` FROM media_assets ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	list := make([]models.MediaAsset, 0)
	for rows.Next() {
		m, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}
	return list, rows.Err()
}

// Delete removes an asset and, by cascade, its view events. The deleted row is
// returned so the caller can remove the stored bytes.
func (r *Repository) Delete(ctx context.Context, id int64) (*models.MediaAsset, error) {
	return scanAsset(r.pool.QueryRow(ctx, `DELETE FROM media_assets WHERE id = $1 RETURNING `+mediaColumns, id))
}

func scanAsset(row pgx.Row) (*models.MediaAsset, error) {
	var (
		m     models.MediaAsset
		mtype string
	)
	if err := row.Scan(&m.ID, &m.Title, &mtype, &m.ContentType, &m.SizeBytes, &m.StorageKey, &m.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan media: %w", err)
	}
	m.Type = models.MediaType(mtype)
	return &m, nil
}
