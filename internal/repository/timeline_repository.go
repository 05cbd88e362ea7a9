package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// TimelineRepository stores the append-only dispute audit trail. There is
// deliberately no update or delete.
type TimelineRepository interface {
	Create(ctx context.Context, entry *domain.TimelineEntry) error
	ListByDispute(ctx context.Context, disputeID string) ([]domain.TimelineEntry, error)
}

type timelineRepository struct {
	pool *pgxpool.Pool
}

// NewTimelineRepository builds repository.
func NewTimelineRepository(pool *pgxpool.Pool) TimelineRepository {
	return &timelineRepository{pool: pool}
}

func (r *timelineRepository) Create(ctx context.Context, entry *domain.TimelineEntry) error {
	const query = `
        INSERT INTO dispute_timeline (dispute_id, action, details, actor_type, actor_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		entry.DisputeID,
		entry.Action,
		entry.Details,
		entry.ActorType,
		entry.ActorID,
	).Scan(&entry.ID, &entry.Timestamp)
}

func (r *timelineRepository) ListByDispute(ctx context.Context, disputeID string) ([]domain.TimelineEntry, error) {
	const query = `
        SELECT id, dispute_id, action, details, actor_type, actor_id, created_at
        FROM dispute_timeline WHERE dispute_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TimelineEntry
	for rows.Next() {
		var entry domain.TimelineEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.DisputeID,
			&entry.Action,
			&entry.Details,
			&entry.ActorType,
			&entry.ActorID,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
