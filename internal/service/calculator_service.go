package service

import (
	"context"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// CalculatorService implements ports.PayoutCalculator. It only reads; the
// commit into a Payout row is the scheduler's explicit, separate step.
type CalculatorService struct {
	beneficiaries ports.BeneficiaryRepository
	assignments   ports.AssignmentRepository
	payouts       ports.PayoutRepository
	revenue       ports.RevenueSource
	log           zerolog.Logger
}

// NewCalculatorService creates a new CalculatorService.
func NewCalculatorService(
	beneficiaries ports.BeneficiaryRepository,
	assignments ports.AssignmentRepository,
	payouts ports.PayoutRepository,
	revenue ports.RevenueSource,
	log zerolog.Logger,
) *CalculatorService {
	return &CalculatorService{
		beneficiaries: beneficiaries,
		assignments:   assignments,
		payouts:       payouts,
		revenue:       revenue,
		log:           log,
	}
}

// Calculate aggregates the beneficiary's per-machine revenue for the period
// ending at periodEnd. The period start is derived, never supplied: the day
// after the most recent COMPLETED payout's period end, or the onboarding
// date when no payout exists yet. That keeps periods gapless and
// non-overlapping even across failed attempts.
func (s *CalculatorService) Calculate(ctx context.Context, beneficiaryID uuid.UUID, periodEnd time.Time) (*domain.PayoutComputation, error) {
	if periodEnd.IsZero() {
		return nil, apperror.Validation("period_end is required")
	}
	periodEnd = truncateToDay(periodEnd)

	ben, err := s.beneficiaries.GetByID(ctx, beneficiaryID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load beneficiary: %w", err))
	}
	if ben == nil {
		return nil, apperror.ErrNotFound("beneficiary")
	}

	periodStart, err := s.derivePeriodStart(ctx, ben)
	if err != nil {
		return nil, err
	}
	if periodStart.After(periodEnd) {
		return nil, apperror.Validation(fmt.Sprintf(
			"period already settled through %s", periodStart.AddDate(0, 0, -1).Format("2006-01-02")))
	}

	active, err := s.assignments.ListActiveByBeneficiary(ctx, beneficiaryID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load assignments: %w", err))
	}

	comp := &domain.PayoutComputation{
		BeneficiaryID:   beneficiaryID,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		TotalSales:      decimal.Zero,
		TotalCommission: decimal.Zero,
		PayoutAmount:    decimal.Zero,
	}

	for _, a := range active {
		sales, err := s.revenue.MachineSales(ctx, a.MachineID, periodStart, periodEnd)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("machine %s revenue: %w", a.MachineID, err))
		}

		// Round each operand to minor-unit precision before summation so
		// totals stay exact across any number of machines.
		sales = sales.Round(2)
		commission := sales.Mul(a.CommissionPercent).Div(oneHundred).Round(2)
		net := sales.Sub(commission)

		comp.Lines = append(comp.Lines, domain.PayoutLine{
			MachineID:         a.MachineID,
			SalesAmount:       sales,
			CommissionPercent: a.CommissionPercent,
			CommissionAmount:  commission,
			NetAmount:         net,
		})
		comp.TotalSales = comp.TotalSales.Add(sales)
		comp.TotalCommission = comp.TotalCommission.Add(commission)
		comp.PayoutAmount = comp.PayoutAmount.Add(net)
	}

	s.log.Debug().
		Str("beneficiary_id", beneficiaryID.String()).
		Str("period_start", periodStart.Format("2006-01-02")).
		Str("period_end", periodEnd.Format("2006-01-02")).
		Str("payout_amount", comp.PayoutAmount.StringFixed(2)).
		Int("machines", len(comp.Lines)).
		Msg("payout computed")

	return comp, nil
}

func (s *CalculatorService) derivePeriodStart(ctx context.Context, ben *domain.Beneficiary) (time.Time, error) {
	last, err := s.payouts.GetLastCompleted(ctx, ben.ID)
	if err != nil {
		return time.Time{}, apperror.InternalError(fmt.Errorf("load last completed payout: %w", err))
	}
	if last != nil {
		return truncateToDay(last.PeriodEnd).AddDate(0, 0, 1), nil
	}
	return truncateToDay(ben.OnboardedAt), nil
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
