package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// PayoutRepo implements ports.PayoutRepository. The payouts table is
// append-only; status moves PENDING -> PROCESSING -> {COMPLETED | FAILED}
// and every transition is guarded by a WHERE on the current status.
type PayoutRepo struct {
	pool Pool
}

// NewPayoutRepo creates a new PayoutRepo.
func NewPayoutRepo(pool Pool) *PayoutRepo {
	return &PayoutRepo{pool: pool}
}

const payoutColumns = `id, beneficiary_id, period_start, period_end, total_sales,
	commission_amount, payout_amount, status, external_reference, error_message,
	created_at, executed_at`

// Create inserts a new PENDING payout within a database transaction.
func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	query := `INSERT INTO payouts (id, beneficiary_id, period_start, period_end, total_sales, commission_amount, payout_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.Exec(ctx, query,
		p.ID, p.BeneficiaryID, p.PeriodStart, p.PeriodEnd,
		p.TotalSales, p.CommissionAmount, p.PayoutAmount,
		p.Status, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout: %w", err)
	}
	return nil
}

// MarkProcessing moves a PENDING payout to PROCESSING.
func (r *PayoutRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payouts SET status = $1 WHERE id = $2 AND status = $3`

	tag, err := r.pool.Exec(ctx, query,
		domain.PayoutStatusProcessing, id, domain.PayoutStatusPending)
	if err != nil {
		return fmt.Errorf("mark payout processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s is not pending", id)
	}
	return nil
}

// MarkCompleted moves a PROCESSING payout to COMPLETED, recording the
// reference assigned by the remote platform.
func (r *PayoutRepo) MarkCompleted(ctx context.Context, id uuid.UUID, externalReference string, executedAt time.Time) error {
	query := `UPDATE payouts SET status = $1, external_reference = $2, executed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.PayoutStatusCompleted, externalReference, executedAt,
		id, domain.PayoutStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark payout completed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s is not processing", id)
	}
	return nil
}

// MarkFailed moves a PROCESSING payout to FAILED, recording the remote
// failure text verbatim.
func (r *PayoutRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, executedAt time.Time) error {
	query := `UPDATE payouts SET status = $1, error_message = $2, executed_at = $3
		WHERE id = $4 AND status = $5`

	tag, err := r.pool.Exec(ctx, query,
		domain.PayoutStatusFailed, errorMessage, executedAt,
		id, domain.PayoutStatusProcessing)
	if err != nil {
		return fmt.Errorf("mark payout failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %s is not processing", id)
	}
	return nil
}

// GetByID fetches a payout by its UUID.
func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE id = $1`

	p := &domain.Payout{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.BeneficiaryID, &p.PeriodStart, &p.PeriodEnd,
		&p.TotalSales, &p.CommissionAmount, &p.PayoutAmount,
		&p.Status, &p.ExternalReference, &p.ErrorMessage,
		&p.CreatedAt, &p.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payout by id: %w", err)
	}
	return p, nil
}

// GetLastCompleted fetches the beneficiary's most recent COMPLETED payout.
func (r *PayoutRepo) GetLastCompleted(ctx context.Context, beneficiaryID uuid.UUID) (*domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts
		WHERE beneficiary_id = $1 AND status = $2
		ORDER BY period_end DESC LIMIT 1`

	p := &domain.Payout{}
	err := r.pool.QueryRow(ctx, query, beneficiaryID, domain.PayoutStatusCompleted).Scan(
		&p.ID, &p.BeneficiaryID, &p.PeriodStart, &p.PeriodEnd,
		&p.TotalSales, &p.CommissionAmount, &p.PayoutAmount,
		&p.Status, &p.ExternalReference, &p.ErrorMessage,
		&p.CreatedAt, &p.ExecutedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last completed payout: %w", err)
	}
	return p, nil
}

// List returns payouts newest first, optionally filtered by beneficiary
// and status.
func (r *PayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE 1=1`
	args := []any{}

	if params.BeneficiaryID != nil {
		args = append(args, *params.BeneficiaryID)
		query += ` AND beneficiary_id = $` + strconv.Itoa(len(args))
	}
	if params.Status != nil {
		args = append(args, *params.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`
	if params.Limit > 0 {
		args = append(args, params.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Payout
	for rows.Next() {
		var p domain.Payout
		if err := rows.Scan(
			&p.ID, &p.BeneficiaryID, &p.PeriodStart, &p.PeriodEnd,
			&p.TotalSales, &p.CommissionAmount, &p.PayoutAmount,
			&p.Status, &p.ExternalReference, &p.ErrorMessage,
			&p.CreatedAt, &p.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list payouts: %w", err)
	}
	return out, nil
}
