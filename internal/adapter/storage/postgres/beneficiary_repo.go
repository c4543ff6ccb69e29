package postgres

import (
	"context"
	"errors"
	"fmt"

	"vending-payout-console/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// BeneficiaryRepo implements ports.BeneficiaryRepository.
type BeneficiaryRepo struct {
	pool Pool
}

// NewBeneficiaryRepo creates a new BeneficiaryRepo.
func NewBeneficiaryRepo(pool Pool) *BeneficiaryRepo {
	return &BeneficiaryRepo{pool: pool}
}

// Create inserts a new beneficiary.
func (r *BeneficiaryRepo) Create(ctx context.Context, b *domain.Beneficiary) error {
	query := `INSERT INTO beneficiaries (id, name, type, virtual_account_id, onboarded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.Name, b.Type, b.VirtualAccountID, b.OnboardedAt, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert beneficiary: %w", err)
	}
	return nil
}

// GetByID fetches a beneficiary by its UUID.
func (r *BeneficiaryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	query := `SELECT id, name, type, virtual_account_id, onboarded_at, created_at
		FROM beneficiaries WHERE id = $1`

	b := &domain.Beneficiary{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.Name, &b.Type, &b.VirtualAccountID, &b.OnboardedAt, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get beneficiary by id: %w", err)
	}
	return b, nil
}

// ListWithActiveAssignments returns every beneficiary that currently has at
// least one active machine assignment, in stable ID order.
func (r *BeneficiaryRepo) ListWithActiveAssignments(ctx context.Context) ([]domain.Beneficiary, error) {
	query := `SELECT DISTINCT b.id, b.name, b.type, b.virtual_account_id, b.onboarded_at, b.created_at
		FROM beneficiaries b
		JOIN machine_assignments ma ON ma.beneficiary_id = b.id
		WHERE ma.superseded_at IS NULL
		ORDER BY b.id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	defer rows.Close()

	var out []domain.Beneficiary
	for rows.Next() {
		var b domain.Beneficiary
		if err := rows.Scan(&b.ID, &b.Name, &b.Type, &b.VirtualAccountID, &b.OnboardedAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan beneficiary: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list beneficiaries: %w", err)
	}
	return out, nil
}
