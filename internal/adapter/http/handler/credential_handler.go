package handler

import (
	"time"

	"vending-payout-console/internal/adapter/http/dto"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"
	"vending-payout-console/pkg/response"

	"github.com/gin-gonic/gin"
)

// CredentialHandler manages signing credentials per layer.
type CredentialHandler struct {
	credentials ports.CredentialAdmin
}

// NewCredentialHandler creates a new CredentialHandler.
func NewCredentialHandler(credentials ports.CredentialAdmin) *CredentialHandler {
	return &CredentialHandler{credentials: credentials}
}

// SaveCredential handles PUT /api/v1/credentials/:layer. The private key is
// validated and encrypted before it touches storage; it is never echoed back.
func (h *CredentialHandler) SaveCredential(c *gin.Context) {
	layer := domain.Layer(c.Param("layer"))
	if !layer.Valid() {
		response.Error(c, apperror.Validation("layer must be sandbox or live"))
		return
	}

	var req dto.CredentialSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if err := h.credentials.Save(c.Request.Context(), layer, req.PrivateKeyPEM, req.SignerID, req.KeyFingerprint); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.CredentialResponse{
		Layer:          string(layer),
		SignerID:       req.SignerID,
		KeyFingerprint: req.KeyFingerprint,
		UpdatedAt:      time.Now().UTC().Format(time.RFC3339),
	})
}
