package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// EvidenceRepository persists evidence metadata.
type EvidenceRepository interface {
	Create(ctx context.Context, item *domain.EvidenceItem) error
	ListByDispute(ctx context.Context, disputeID string) ([]domain.EvidenceItem, error)
}

type evidenceRepository struct {
	pool *pgxpool.Pool
}

// NewEvidenceRepository constructs repository.
func NewEvidenceRepository(pool *pgxpool.Pool) EvidenceRepository {
	return &evidenceRepository{pool: pool}
}

func (r *evidenceRepository) Create(ctx context.Context, item *domain.EvidenceItem) error {
	const query = `
        INSERT INTO dispute_evidence (dispute_id, evidence_type, url, public_id, file_name, content_type, size_bytes, description, uploaded_by_type, uploaded_by_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, uploaded_at`
	return r.pool.QueryRow(ctx, query,
		item.DisputeID,
		item.Type,
		item.URL,
		item.PublicID,
		item.FileName,
		item.ContentType,
		item.SizeBytes,
		item.Description,
		item.UploadedByType,
		item.UploadedByID,
	).Scan(&item.ID, &item.UploadedAt)
}

func (r *evidenceRepository) ListByDispute(ctx context.Context, disputeID string) ([]domain.EvidenceItem, error) {
	const query = `
        SELECT id, dispute_id, evidence_type, url, public_id, file_name, content_type, size_bytes, description, uploaded_by_type, uploaded_by_id, uploaded_at
        FROM dispute_evidence WHERE dispute_id=$1 ORDER BY uploaded_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.EvidenceItem
	for rows.Next() {
		var item domain.EvidenceItem
		if err := rows.Scan(
			&item.ID,
			&item.DisputeID,
			&item.Type,
			&item.URL,
			&item.PublicID,
			&item.FileName,
			&item.ContentType,
			&item.SizeBytes,
			&item.Description,
			&item.UploadedByType,
			&item.UploadedByID,
			&item.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}
