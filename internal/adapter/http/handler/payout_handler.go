package handler

import (
	"time"

	"vending-payout-console/internal/adapter/http/dto"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"
	"vending-payout-console/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PayoutHandler handles the settlement endpoints.
type PayoutHandler struct {
	scheduler ports.PayoutScheduler
	calc      ports.PayoutCalculator
	payouts   ports.PayoutRepository
}

// NewPayoutHandler creates a new PayoutHandler.
func NewPayoutHandler(scheduler ports.PayoutScheduler, calc ports.PayoutCalculator, payouts ports.PayoutRepository) *PayoutHandler {
	return &PayoutHandler{
		scheduler: scheduler,
		calc:      calc,
		payouts:   payouts,
	}
}

// Calculate handles POST /api/v1/payouts/calculate. Pure preview: no row is
// created, no transfer happens.
func (h *PayoutHandler) Calculate(c *gin.Context) {
	var req dto.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	beneficiaryID, periodEnd, err := parseRunParams(req.BeneficiaryID, req.PeriodEnd)
	if err != nil {
		response.Error(c, err)
		return
	}

	comp, err := h.calc.Calculate(c.Request.Context(), beneficiaryID, periodEnd)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, comp)
}

// Execute handles POST /api/v1/payouts/execute.
func (h *PayoutHandler) Execute(c *gin.Context) {
	var req dto.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	beneficiaryID, periodEnd, err := parseRunParams(req.BeneficiaryID, req.PeriodEnd)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.scheduler.RunOne(c.Request.Context(), beneficiaryID, periodEnd)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Payout != nil {
		response.Created(c, dto.ToRunResult(result))
		return
	}
	response.OK(c, dto.ToRunResult(result))
}

// RunScheduled handles POST /api/v1/payouts/run-scheduled.
func (h *PayoutHandler) RunScheduled(c *gin.Context) {
	batch, err := h.scheduler.RunScheduled(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.ToBatchResult(batch))
}

// ListHistory handles GET /api/v1/payouts.
func (h *PayoutHandler) ListHistory(c *gin.Context) {
	params := ports.PayoutListParams{Limit: 100}

	if s := c.Query("status"); s != "" {
		status := domain.PayoutStatus(s)
		switch status {
		case domain.PayoutStatusPending, domain.PayoutStatusProcessing,
			domain.PayoutStatusCompleted, domain.PayoutStatusFailed:
			params.Status = &status
		default:
			response.Error(c, apperror.Validation("unknown status filter"))
			return
		}
	}
	if b := c.Query("beneficiary_id"); b != "" {
		id, err := uuid.Parse(b)
		if err != nil {
			response.Error(c, apperror.Validation("beneficiary_id must be a UUID"))
			return
		}
		params.BeneficiaryID = &id
	}

	payouts, err := h.payouts.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}
	response.OK(c, payouts)
}

func parseRunParams(beneficiaryID, periodEnd string) (uuid.UUID, time.Time, error) {
	id, err := uuid.Parse(beneficiaryID)
	if err != nil {
		return uuid.Nil, time.Time{}, apperror.Validation("beneficiary_id must be a UUID")
	}
	end, err := dto.ParseDate(periodEnd)
	if err != nil {
		return uuid.Nil, time.Time{}, apperror.Validation("period_end must be YYYY-MM-DD")
	}
	return id, end, nil
}
