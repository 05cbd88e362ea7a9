package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// ContractRepository maintains the read model of job contracts synced from
// the booking subsystem.
type ContractRepository interface {
	Upsert(ctx context.Context, contract *domain.JobContract) error
	GetByID(ctx context.Context, id string) (*domain.JobContract, error)
}

type contractRepository struct {
	pool *pgxpool.Pool
}

// NewContractRepository builds repository.
func NewContractRepository(pool *pgxpool.Pool) ContractRepository {
	return &contractRepository{pool: pool}
}

func (r *contractRepository) Upsert(ctx context.Context, contract *domain.JobContract) error {
	const query = `
        INSERT INTO contracts (id, title, customer_id, artisan_id, status)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, status=EXCLUDED.status, updated_at=NOW()
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		contract.ID,
		contract.Title,
		contract.CustomerID,
		contract.ArtisanID,
		contract.Status,
	).Scan(&contract.CreatedAt, &contract.UpdatedAt)
}

func (r *contractRepository) GetByID(ctx context.Context, id string) (*domain.JobContract, error) {
	const query = `
        SELECT id, title, customer_id, artisan_id, status, created_at, updated_at
        FROM contracts WHERE id=$1`
	var contract domain.JobContract
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&contract.ID,
		&contract.Title,
		&contract.CustomerID,
		&contract.ArtisanID,
		&contract.Status,
		&contract.CreatedAt,
		&contract.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &contract, nil
}
