package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediavault/backend/internal/models"
)

var (
	// ErrNotFound is returned when no admin matches the lookup.
	ErrNotFound = errors.New("admin not found")
	// ErrEmailTaken is returned when signup collides with an existing email.
	ErrEmailTaken = errors.New("email already registered")
)

// Store is the credential store used by the auth handlers.
type Store interface {
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	Create(ctx context.Context, email, passwordHash string) (*models.Admin, error)
}

// Repository handles admin persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns an admin by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admin_users WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, id))
}

// GetByEmail returns an admin by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admin_users WHERE email = $1`
	return r.scanOne(r.pool.QueryRow(ctx, q, email))
}

// Create inserts a new admin. The unique index on email makes concurrent signups safe.
func (r *Repository) Create(ctx context.Context, email, passwordHash string) (*models.Admin, error) {
	const q = `INSERT INTO admin_users (email, password_hash) VALUES ($1, $2)
		RETURNING id, email, password_hash, created_at`
	a, err := r.scanOne(r.pool.QueryRow(ctx, q, email, passwordHash))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return a, nil
}

func (r *Repository) scanOne(row pgx.Row) (*models.Admin, error) {
	var a models.Admin
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan admin: %w", err)
	}
	return &a, nil
}
