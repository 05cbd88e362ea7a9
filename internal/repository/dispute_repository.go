package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Wildnerds/korrectNG-sub003/internal/domain"
)

// ErrDuplicateActiveDispute is returned when the contract already carries
// an open, awaiting-response, or under-review dispute. The partial unique
// index resolves the race; callers never fetch-then-check.
var ErrDuplicateActiveDispute = errors.New("contract already has an active dispute")

// ErrStatusConflict is returned by compare-and-set updates when the stored
// status no longer matches the expected one.
var ErrStatusConflict = errors.New("dispute status changed concurrently")

const activeDisputeIndex = "idx_disputes_one_active_per_contract"

// DisputeFilter captures listing parameters.
type DisputeFilter struct {
	CustomerID *string
	ArtisanID  *string
	ContractID *string
	Statuses   []domain.DisputeStatus
	Categories []domain.DisputeCategory
	Limit      int
	Offset     int
}

// DisputeRepository encapsulates dispute persistence.
type DisputeRepository interface {
	Create(ctx context.Context, dispute *domain.Dispute) error
	GetByID(ctx context.Context, id string) (*domain.Dispute, error)
	GetByExternalKey(ctx context.Context, key string) (*domain.Dispute, error)
	ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error)
	UpdateStatusIf(ctx context.Context, dispute *domain.Dispute, expected domain.DisputeStatus) error
	MarkEscrowPaused(ctx context.Context, id string, pausedAt time.Time) error
	MarkEscalated(ctx context.Context, id string, escalatedAt time.Time) (bool, error)
	ListEscalationDue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error)
	ListPausePending(ctx context.Context, limit int) ([]domain.Dispute, error)
}

type disputeRepository struct {
	pool *pgxpool.Pool
}

// NewDisputeRepository instantiates repository.
func NewDisputeRepository(pool *pgxpool.Pool) DisputeRepository {
	return &disputeRepository{pool: pool}
}

const disputeColumns = `id, external_key, contract_id, customer_id, artisan_id, category, description,
               status, resolution_outcome, resolution_notes, opened_at, updated_at, response_due_at,
               responded_at, resolved_at, closed_at, escrow_paused_at, escalated_at`

func (r *disputeRepository) Create(ctx context.Context, dispute *domain.Dispute) error {
	const query = `
        INSERT INTO disputes (external_key, contract_id, customer_id, artisan_id, category, description, status, response_due_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, opened_at, updated_at`
	err := r.pool.QueryRow(ctx, query,
		dispute.ExternalKey,
		dispute.ContractID,
		dispute.CustomerID,
		dispute.ArtisanID,
		dispute.Category,
		dispute.Description,
		dispute.Status,
		dispute.ResponseDueAt,
	).Scan(&dispute.ID, &dispute.OpenedAt, &dispute.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeDisputeIndex {
			return ErrDuplicateActiveDispute
		}
		return err
	}
	return nil
}

func (r *disputeRepository) GetByID(ctx context.Context, id string) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes WHERE id=$1`, disputeColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *disputeRepository) GetByExternalKey(ctx context.Context, key string) (*domain.Dispute, error) {
	query := fmt.Sprintf(`SELECT %s FROM disputes WHERE external_key=$1`, disputeColumns)
	return r.fetchSingle(ctx, query, key)
}

func (r *disputeRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Dispute, error) {
	var dispute domain.Dispute
	if err := scanDispute(r.pool.QueryRow(ctx, query, arg), &dispute); err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepository) ListWithFilter(ctx context.Context, filter DisputeFilter) ([]domain.Dispute, error) {
	base := fmt.Sprintf(`SELECT %s FROM disputes`, disputeColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.ArtisanID != nil {
		args = append(args, *filter.ArtisanID)
		clauses = append(clauses, fmt.Sprintf("artisan_id=$%d", len(args)))
	}
	if filter.ContractID != nil {
		args = append(args, *filter.ContractID)
		clauses = append(clauses, fmt.Sprintf("contract_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

// UpdateStatusIf persists a transition with a compare-and-set on the current
// status. It also writes the resolution and timestamp fields carried on the
// dispute, so callers mutate the struct first and then commit.
func (r *disputeRepository) UpdateStatusIf(ctx context.Context, dispute *domain.Dispute, expected domain.DisputeStatus) error {
	const query = `
        UPDATE disputes SET status=$1, resolution_outcome=$2, resolution_notes=$3,
            responded_at=$4, resolved_at=$5, closed_at=$6, updated_at=NOW()
        WHERE id=$7 AND status=$8`
	cmd, err := r.pool.Exec(ctx, query,
		dispute.Status,
		dispute.ResolutionOutcome,
		dispute.ResolutionNotes,
		dispute.RespondedAt,
		dispute.ResolvedAt,
		dispute.ClosedAt,
		dispute.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *disputeRepository) MarkEscrowPaused(ctx context.Context, id string, pausedAt time.Time) error {
	const query = `UPDATE disputes SET escrow_paused_at=$1, updated_at=NOW() WHERE id=$2 AND escrow_paused_at IS NULL`
	_, err := r.pool.Exec(ctx, query, pausedAt, id)
	return err
}

// MarkEscalated flags a dispute once; a false return means another worker
// instance got there first.
func (r *disputeRepository) MarkEscalated(ctx context.Context, id string, escalatedAt time.Time) (bool, error) {
	const query = `UPDATE disputes SET escalated_at=$1, updated_at=NOW() WHERE id=$2 AND escalated_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, escalatedAt, id)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *disputeRepository) ListEscalationDue(ctx context.Context, now time.Time, limit int) ([]domain.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT %s FROM disputes
        WHERE status='OPEN' AND escalated_at IS NULL AND responded_at IS NULL AND response_due_at < $1
        ORDER BY response_due_at ASC LIMIT %d`, disputeColumns, limit)
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

func (r *disputeRepository) ListPausePending(ctx context.Context, limit int) ([]domain.Dispute, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`
        SELECT %s FROM disputes
        WHERE status IN ('OPEN','AWAITING_RESPONSE','UNDER_REVIEW') AND escrow_paused_at IS NULL
        ORDER BY opened_at ASC LIMIT %d`, disputeColumns, limit)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDisputes(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDispute(row rowScanner, dispute *domain.Dispute) error {
	return row.Scan(
		&dispute.ID,
		&dispute.ExternalKey,
		&dispute.ContractID,
		&dispute.CustomerID,
		&dispute.ArtisanID,
		&dispute.Category,
		&dispute.Description,
		&dispute.Status,
		&dispute.ResolutionOutcome,
		&dispute.ResolutionNotes,
		&dispute.OpenedAt,
		&dispute.UpdatedAt,
		&dispute.ResponseDueAt,
		&dispute.RespondedAt,
		&dispute.ResolvedAt,
		&dispute.ClosedAt,
		&dispute.EscrowPausedAt,
		&dispute.EscalatedAt,
	)
}

func scanDisputes(rows pgx.Rows) ([]domain.Dispute, error) {
	var result []domain.Dispute
	for rows.Next() {
		var dispute domain.Dispute
		if err := scanDispute(rows, &dispute); err != nil {
			return nil, err
		}
		result = append(result, dispute)
	}
	return result, rows.Err()
}
