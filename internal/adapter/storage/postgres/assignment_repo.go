package postgres

import (
	"context"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"

	"github.com/google/uuid"
)

// AssignmentRepo implements ports.AssignmentRepository. Reassigning a
// machine inserts a fresh row and stamps superseded_at on the old one, so
// the assignment history stays auditable.
type AssignmentRepo struct {
	pool Pool
}

// NewAssignmentRepo creates a new AssignmentRepo.
func NewAssignmentRepo(pool Pool) *AssignmentRepo {
	return &AssignmentRepo{pool: pool}
}

// Create inserts a new machine assignment.
func (r *AssignmentRepo) Create(ctx context.Context, a *domain.MachineAssignment) error {
	query := `INSERT INTO machine_assignments (id, machine_id, beneficiary_id, commission_percent, assigned_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.MachineID, a.BeneficiaryID, a.CommissionPercent, a.AssignedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// Supersede stamps the machine's active assignment as ended.
func (r *AssignmentRepo) Supersede(ctx context.Context, machineID string, at time.Time) error {
	query := `UPDATE machine_assignments SET superseded_at = $1
		WHERE machine_id = $2 AND superseded_at IS NULL`

	if _, err := r.pool.Exec(ctx, query, at, machineID); err != nil {
		return fmt.Errorf("supersede assignment: %w", err)
	}
	return nil
}

// ListActiveByBeneficiary returns the beneficiary's active assignments.
func (r *AssignmentRepo) ListActiveByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID) ([]domain.MachineAssignment, error) {
	query := `SELECT id, machine_id, beneficiary_id, commission_percent, assigned_at, superseded_at
		FROM machine_assignments
		WHERE beneficiary_id = $1 AND superseded_at IS NULL
		ORDER BY machine_id`

	rows, err := r.pool.Query(ctx, query, beneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	defer rows.Close()

	var out []domain.MachineAssignment
	for rows.Next() {
		var a domain.MachineAssignment
		if err := rows.Scan(&a.ID, &a.MachineID, &a.BeneficiaryID, &a.CommissionPercent, &a.AssignedAt, &a.SupersededAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active assignments: %w", err)
	}
	return out, nil
}
