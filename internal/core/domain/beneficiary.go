package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BeneficiaryType mirrors the payee classification of the remote platform.
type BeneficiaryType string

const (
	BeneficiaryTypeOrganization   BeneficiaryType = "ORGANIZATION"
	BeneficiaryTypeSoleProprietor BeneficiaryType = "SOLE_PROPRIETOR"
	BeneficiaryTypeIndividual     BeneficiaryType = "INDIVIDUAL"
)

// Beneficiary is a payee eligible to receive payouts. The remote platform
// holds a virtual account on its behalf; VirtualAccountID references it.
type Beneficiary struct {
	ID               uuid.UUID       `json:"id"`
	Name             string          `json:"name"`
	Type             BeneficiaryType `json:"type"`
	VirtualAccountID string          `json:"virtual_account_id"`
	OnboardedAt      time.Time       `json:"onboarded_at"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MachineAssignment ties a vending machine to the beneficiary earning its
// revenue. Reassignment supersedes the previous record instead of mutating
// it; the superseded row keeps its historical commission rate.
type MachineAssignment struct {
	ID                uuid.UUID       `json:"id"`
	MachineID         string          `json:"machine_id"`
	BeneficiaryID     uuid.UUID       `json:"beneficiary_id"`
	CommissionPercent decimal.Decimal `json:"commission_percent"` // 0-100, one decimal place
	AssignedAt        time.Time       `json:"assigned_at"`
	SupersededAt      *time.Time      `json:"superseded_at,omitempty"`
}

// Active reports whether the assignment is the machine's current one.
func (a *MachineAssignment) Active() bool {
	return a.SupersededAt == nil
}

// ValidCommission reports whether the rate is within 0-100 with at most one
// decimal place of precision.
func (a *MachineAssignment) ValidCommission() bool {
	p := a.CommissionPercent
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return false
	}
	return p.Equal(p.Round(1))
}
