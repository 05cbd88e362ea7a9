package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// ArtisanRepository persists artisan accounts.
type ArtisanRepository interface {
	Create(ctx context.Context, artisan *domain.Artisan) error
	GetByID(ctx context.Context, id string) (*domain.Artisan, error)
	GetByEmail(ctx context.Context, email string) (*domain.Artisan, error)
}

type artisanRepository struct {
	pool *pgxpool.Pool
}

// NewArtisanRepository instantiates repository.
func NewArtisanRepository(pool *pgxpool.Pool) ArtisanRepository {
	return &artisanRepository{pool: pool}
}

func (r *artisanRepository) Create(ctx context.Context, artisan *domain.Artisan) error {
	const query = `
        INSERT INTO artisans (name, email, trade, password_hash, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		artisan.Name,
		artisan.Email,
		artisan.Trade,
		artisan.PasswordHash,
		artisan.Status,
	).Scan(&artisan.ID, &artisan.CreatedAt, &artisan.UpdatedAt)
}

func (r *artisanRepository) GetByID(ctx context.Context, id string) (*domain.Artisan, error) {
	const query = `
        SELECT id, name, email, trade, password_hash, status, created_at, updated_at
        FROM artisans WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *artisanRepository) GetByEmail(ctx context.Context, email string) (*domain.Artisan, error) {
	const query = `
        SELECT id, name, email, trade, password_hash, status, created_at, updated_at
        FROM artisans WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *artisanRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Artisan, error) {
	var artisan domain.Artisan
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&artisan.ID,
		&artisan.Name,
		&artisan.Email,
		&artisan.Trade,
		&artisan.PasswordHash,
		&artisan.Status,
		&artisan.CreatedAt,
		&artisan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &artisan, nil
}
