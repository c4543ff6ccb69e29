package handler

import (
	"errors"
	"net/http"

	"vending-payout-console/internal/adapter/http/dto"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"
	"vending-payout-console/pkg/response"

	"github.com/gin-gonic/gin"
)

// GatewayHandler is the read proxy into the remote platform.
type GatewayHandler struct {
	gateway ports.Gateway
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(gateway ports.Gateway) *GatewayHandler {
	return &GatewayHandler{gateway: gateway}
}

// Call handles POST /api/v1/gateway/:method. The response body is the raw
// remote payload plus the _cache envelope, not the standard success wrapper,
// so console tooling can pipe it straight through.
func (h *GatewayHandler) Call(c *gin.Context) {
	method := c.Param("method")

	var req dto.GatewayCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	layer := domain.Layer(req.Layer)
	if !layer.Valid() {
		response.Error(c, apperror.Validation("layer must be sandbox or live"))
		return
	}

	result, err := h.gateway.Call(c.Request.Context(), layer, method, req.Params, domain.CallOptions{Force: req.Force})
	if err != nil {
		if apperror.IsRateLimitDeferred(err) && result != nil {
			var appErr *apperror.AppError
			errors.As(err, &appErr)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    appErr.Code,
					"message": appErr.Message,
				},
				"_cache": result.Meta,
			})
			return
		}
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
