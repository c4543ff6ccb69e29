package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SchedulerService implements ports.PayoutScheduler. It owns the persisted
// schedule and the per-beneficiary settlement run.
type SchedulerService struct {
	calc          ports.PayoutCalculator
	gateway       ports.Gateway
	payouts       ports.PayoutRepository
	beneficiaries ports.BeneficiaryRepository
	schedule      ports.ScheduleRepository
	transactor    ports.DBTransactor
	layer         domain.Layer
	defaultCron   string
	log           zerolog.Logger
	now           func() time.Time

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	scheduleChanged func(*domain.PayoutSchedule) // set by the cron runner
}

// NewSchedulerService creates a new SchedulerService. layer selects which
// credential layer money movement runs against.
func NewSchedulerService(
	calc ports.PayoutCalculator,
	gateway ports.Gateway,
	payouts ports.PayoutRepository,
	beneficiaries ports.BeneficiaryRepository,
	schedule ports.ScheduleRepository,
	transactor ports.DBTransactor,
	layer domain.Layer,
	defaultCron string,
	log zerolog.Logger,
) *SchedulerService {
	return &SchedulerService{
		calc:          calc,
		gateway:       gateway,
		payouts:       payouts,
		beneficiaries: beneficiaries,
		schedule:      schedule,
		transactor:    transactor,
		layer:         layer,
		defaultCron:   defaultCron,
		log:           log,
		now:           time.Now,
		inflight:      make(map[uuid.UUID]struct{}),
	}
}

// RunOne settles one beneficiary's open period ending at periodEnd.
//
// A zero or negative payout is a no-op, not an error: no row, no transfer.
// A transfer failure is recorded on the payout row (status FAILED, verbatim
// message) and reported through the result, not as a returned error — the
// returned error is reserved for runs that could not reach the transfer
// step at all. A second concurrent run for the same beneficiary is rejected
// locally before any row exists; the remote duplicate-submission protection
// stays as the backstop.
func (s *SchedulerService) RunOne(ctx context.Context, beneficiaryID uuid.UUID, periodEnd time.Time) (*domain.PayoutRunResult, error) {
	if !s.acquire(beneficiaryID) {
		return nil, apperror.New(apperror.CodeDuplicateSubmission,
			fmt.Sprintf("a payout run for beneficiary %s is already in flight", beneficiaryID), http.StatusConflict)
	}
	defer s.release(beneficiaryID)

	comp, err := s.calc.Calculate(ctx, beneficiaryID, periodEnd)
	if err != nil {
		return nil, err
	}

	result := &domain.PayoutRunResult{BeneficiaryID: beneficiaryID}

	if !comp.PayoutAmount.IsPositive() {
		s.log.Info().
			Str("beneficiary_id", beneficiaryID.String()).
			Str("payout_amount", comp.PayoutAmount.StringFixed(2)).
			Msg("nothing to pay out, skipping")
		result.Skipped = true
		return result, nil
	}

	ben, err := s.beneficiaries.GetByID(ctx, beneficiaryID)
	if err != nil || ben == nil {
		return nil, apperror.InternalError(fmt.Errorf("load beneficiary: %w", err))
	}

	payout, err := s.commit(ctx, comp)
	if err != nil {
		return nil, err
	}
	result.Payout = payout

	if err := s.payouts.MarkProcessing(ctx, payout.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark processing: %w", err))
	}
	payout.Status = domain.PayoutStatusProcessing

	callResult, callErr := s.gateway.Call(ctx, s.layer, domain.MethodTransferMoney, map[string]any{
		"virtual_account_id": ben.VirtualAccountID,
		"amount":             comp.PayoutAmount.StringFixed(2),
		"purpose": fmt.Sprintf("Vending payout %s - %s",
			comp.PeriodStart.Format("2006-01-02"), comp.PeriodEnd.Format("2006-01-02")),
	}, domain.CallOptions{})

	executedAt := s.now().UTC()
	if callErr != nil {
		msg := callErr.Error()
		var appErr *apperror.AppError
		if errors.As(callErr, &appErr) {
			msg = appErr.Message // remote text verbatim, no local wrapping
		}
		if err := s.payouts.MarkFailed(ctx, payout.ID, msg, executedAt); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark failed: %w", err))
		}
		payout.Status = domain.PayoutStatusFailed
		payout.ErrorMessage = &msg
		payout.ExecutedAt = &executedAt
		result.Err = callErr

		s.log.Warn().
			Str("beneficiary_id", beneficiaryID.String()).
			Str("payout_id", payout.ID.String()).
			Str("error", msg).
			Msg("payout transfer failed")
		return result, nil
	}

	ref := externalReference(callResult.Payload)
	if err := s.payouts.MarkCompleted(ctx, payout.ID, ref, executedAt); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark completed: %w", err))
	}
	payout.Status = domain.PayoutStatusCompleted
	payout.ExternalReference = &ref
	payout.ExecutedAt = &executedAt

	s.log.Info().
		Str("beneficiary_id", beneficiaryID.String()).
		Str("payout_id", payout.ID.String()).
		Str("external_reference", ref).
		Str("amount", payout.PayoutAmount.StringFixed(2)).
		Msg("payout completed")

	return result, nil
}

// RunScheduled settles every beneficiary with at least one active machine
// assignment against the current date. One beneficiary's failure never
// aborts the loop; it only lowers the created count.
func (s *SchedulerService) RunScheduled(ctx context.Context) (*domain.BatchRunResult, error) {
	bens, err := s.beneficiaries.ListWithActiveAssignments(ctx)
	if err != nil {
		// The run could not start at all: last_run_at stays untouched.
		return nil, apperror.InternalError(fmt.Errorf("list beneficiaries: %w", err))
	}

	periodEnd := truncateToDay(s.now())
	batch := &domain.BatchRunResult{Total: len(bens)}

	for _, ben := range bens {
		res, err := s.RunOne(ctx, ben.ID, periodEnd)
		if err != nil {
			res = &domain.PayoutRunResult{BeneficiaryID: ben.ID, Err: err}
			s.log.Warn().Err(err).Str("beneficiary_id", ben.ID.String()).Msg("payout run not started")
		}
		batch.Results = append(batch.Results, *res)
		if res.Payout != nil && res.Payout.Status == domain.PayoutStatusCompleted {
			batch.Created++
		}
	}

	if err := s.schedule.SetLastRun(ctx, s.now().UTC()); err != nil {
		s.log.Warn().Err(err).Msg("failed to record last run time")
	}

	s.log.Info().
		Int("created", batch.Created).
		Int("total", batch.Total).
		Msg("scheduled payout batch finished")

	return batch, nil
}

// GetSchedule returns the persisted schedule, or the disabled default when
// none was ever configured.
func (s *SchedulerService) GetSchedule(ctx context.Context) (*domain.PayoutSchedule, error) {
	sched, err := s.schedule.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load schedule: %w", err))
	}
	if sched == nil {
		return &domain.PayoutSchedule{CronExpression: s.defaultCron, IsEnabled: false}, nil
	}
	return sched, nil
}

// UpdateSchedule validates and persists the singleton schedule and notifies
// the cron runner.
func (s *SchedulerService) UpdateSchedule(ctx context.Context, cronExpression string, enabled bool) (*domain.PayoutSchedule, error) {
	if _, err := cron.ParseStandard(cronExpression); err != nil {
		return nil, apperror.Validation(fmt.Sprintf("invalid cron expression %q: %v", cronExpression, err))
	}

	current, err := s.GetSchedule(ctx)
	if err != nil {
		return nil, err
	}

	sched := &domain.PayoutSchedule{
		CronExpression: cronExpression,
		IsEnabled:      enabled,
		LastRunAt:      current.LastRunAt,
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.schedule.Upsert(ctx, sched); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("persist schedule: %w", err))
	}

	if s.scheduleChanged != nil {
		s.scheduleChanged(sched)
	}

	s.log.Info().
		Str("cron", cronExpression).
		Bool("enabled", enabled).
		Msg("payout schedule updated")

	return sched, nil
}

// OnScheduleChange registers the callback invoked after every successful
// schedule update. Used by the cron runner to re-register its entry.
func (s *SchedulerService) OnScheduleChange(fn func(*domain.PayoutSchedule)) {
	s.scheduleChanged = fn
}

// commit persists the computation as a PENDING payout row.
func (s *SchedulerService) commit(ctx context.Context, comp *domain.PayoutComputation) (*domain.Payout, error) {
	payout := &domain.Payout{
		ID:               uuid.New(),
		BeneficiaryID:    comp.BeneficiaryID,
		PeriodStart:      comp.PeriodStart,
		PeriodEnd:        comp.PeriodEnd,
		TotalSales:       comp.TotalSales,
		CommissionAmount: comp.TotalCommission,
		PayoutAmount:     comp.PayoutAmount,
		Status:           domain.PayoutStatusPending,
		CreatedAt:        s.now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.payouts.Create(ctx, dbTx, payout); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create payout: %w", err))
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return payout, nil
}

func (s *SchedulerService) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *SchedulerService) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

// externalReference extracts the remote payment id from a transfer result,
// falling back to the raw payload when the shape is unexpected.
func externalReference(payload json.RawMessage) string {
	var body struct {
		PaymentID string `json:"payment_id"`
	}
	if err := json.Unmarshal(payload, &body); err == nil && body.PaymentID != "" {
		return body.PaymentID
	}
	return string(payload)
}
