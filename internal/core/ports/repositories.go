package ports

import (
	"context"
	"time"

	"vending-payout-console/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CredentialRepository persists signing credentials, encrypted at rest.
// One row per layer; Save replaces the layer's row atomically.
type CredentialRepository interface {
	Save(ctx context.Context, cred *domain.Credential, encryptedKey string) error
	Get(ctx context.Context, layer domain.Layer) (*domain.Credential, string, error) // credential (key empty), encrypted key
}

// BeneficiaryRepository defines persistence operations for beneficiaries.
type BeneficiaryRepository interface {
	Create(ctx context.Context, b *domain.Beneficiary) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error)
	// ListWithActiveAssignments returns every beneficiary that currently has
	// at least one active machine assignment, in stable ID order.
	ListWithActiveAssignments(ctx context.Context) ([]domain.Beneficiary, error)
}

// AssignmentRepository defines persistence for machine assignments.
// Reassigning a machine supersedes its current row rather than mutating it.
type AssignmentRepository interface {
	Create(ctx context.Context, a *domain.MachineAssignment) error
	Supersede(ctx context.Context, machineID string, at time.Time) error
	ListActiveByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID) ([]domain.MachineAssignment, error)
}

// PayoutRepository is the append-only payout ledger.
type PayoutRepository interface {
	Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error
	// MarkProcessing moves a PENDING payout to PROCESSING; it fails when the
	// row is not in PENDING so the state machine cannot be skipped.
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID, externalReference string, executedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, executedAt time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error)
	// GetLastCompleted returns the beneficiary's most recent COMPLETED payout,
	// or nil when none exists.
	GetLastCompleted(ctx context.Context, beneficiaryID uuid.UUID) (*domain.Payout, error)
	List(ctx context.Context, params PayoutListParams) ([]domain.Payout, error)
}

// PayoutListParams filters the payout history listing.
type PayoutListParams struct {
	BeneficiaryID *uuid.UUID
	Status        *domain.PayoutStatus
	Limit         int
}

// ScheduleRepository persists the singleton payout schedule.
type ScheduleRepository interface {
	Get(ctx context.Context) (*domain.PayoutSchedule, error) // nil when never configured
	Upsert(ctx context.Context, s *domain.PayoutSchedule) error
	SetLastRun(ctx context.Context, at time.Time) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
