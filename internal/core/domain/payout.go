package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutStatus is the lifecycle state of a payout.
// Flow: PENDING -> PROCESSING -> {COMPLETED | FAILED}. There is no automatic
// transition out of FAILED; retrying an uncovered period is a fresh run.
type PayoutStatus string

const (
	PayoutStatusPending    PayoutStatus = "PENDING"
	PayoutStatusProcessing PayoutStatus = "PROCESSING"
	PayoutStatusCompleted  PayoutStatus = "COMPLETED"
	PayoutStatusFailed     PayoutStatus = "FAILED"
)

// Payout is one settlement of a beneficiary's revenue period. Rows are
// append-only: they form the beneficiary's payout ledger and are never
// deleted or reused.
type Payout struct {
	ID                uuid.UUID       `json:"id"`
	BeneficiaryID     uuid.UUID       `json:"beneficiary_id"`
	PeriodStart       time.Time       `json:"period_start"`
	PeriodEnd         time.Time       `json:"period_end"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	PayoutAmount      decimal.Decimal `json:"payout_amount"`
	Status            PayoutStatus    `json:"status"`
	ExternalReference *string         `json:"external_reference,omitempty"` // id assigned by the remote platform
	ErrorMessage      *string         `json:"error_message,omitempty"`      // remote failure text, verbatim
	CreatedAt         time.Time       `json:"created_at"`
	ExecutedAt        *time.Time      `json:"executed_at,omitempty"`
}

// IsTerminal reports whether the payout reached a final state.
func (p *Payout) IsTerminal() bool {
	return p.Status == PayoutStatusCompleted || p.Status == PayoutStatusFailed
}

// PayoutLine is the per-machine contribution inside a computation. The
// commission rate is copied from the assignment at calculation time, so
// retroactive rate edits never change historical payouts.
type PayoutLine struct {
	MachineID         string          `json:"machine_id"`
	SalesAmount       decimal.Decimal `json:"sales_amount"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
}

// PayoutComputation is a side-effect-free preview of a payout. Committing it
// to a Payout row is a separate, explicit step.
type PayoutComputation struct {
	BeneficiaryID   uuid.UUID       `json:"beneficiary_id"`
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	Lines           []PayoutLine    `json:"lines"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	PayoutAmount    decimal.Decimal `json:"payout_amount"`
}

// PayoutRunResult is the outcome of a single-beneficiary run.
type PayoutRunResult struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id"`
	Payout        *Payout   `json:"payout,omitempty"` // nil when skipped
	Skipped       bool      `json:"skipped"`          // zero/negative period, nothing to pay
	Err           error     `json:"-"`
}

// BatchRunResult summarizes one scheduled batch. Created < Total whenever any
// beneficiary failed; individual failures live on their own Payout rows.
type BatchRunResult struct {
	Created int               `json:"created"`
	Total   int               `json:"total"`
	Results []PayoutRunResult `json:"results"`
}

// PayoutSchedule is the singleton batch-run schedule. LastRunAt moves only
// after a batch actually ran (fully or partially), never when a run could
// not start at all.
type PayoutSchedule struct {
	CronExpression string     `json:"cron_expression"`
	IsEnabled      bool       `json:"is_enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
