package handler

import (
	"vending-payout-console/internal/adapter/http/dto"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"
	"vending-payout-console/pkg/response"

	"github.com/gin-gonic/gin"
)

// ScheduleHandler exposes the payout schedule configuration.
type ScheduleHandler struct {
	scheduler ports.PayoutScheduler
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduler ports.PayoutScheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

// GetSchedule handles GET /api/v1/schedule.
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
	sched, err := h.scheduler.GetSchedule(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sched)
}

// UpdateSchedule handles PUT /api/v1/schedule.
func (h *ScheduleHandler) UpdateSchedule(c *gin.Context) {
	var req dto.ScheduleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	sched, err := h.scheduler.UpdateSchedule(c.Request.Context(), req.CronExpression, req.IsEnabled)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sched)
}
