package dto

import (
	"time"

	"vending-payout-console/internal/core/domain"
)

// CalculateRequest is the request body for a payout preview.
type CalculateRequest struct {
	BeneficiaryID string `json:"beneficiary_id" binding:"required,uuid"`
	PeriodEnd     string `json:"period_end" binding:"required"` // YYYY-MM-DD
}

// ExecuteRequest is the request body for a single payout run.
type ExecuteRequest struct {
	BeneficiaryID string `json:"beneficiary_id" binding:"required,uuid"`
	PeriodEnd     string `json:"period_end" binding:"required"` // YYYY-MM-DD
}

// ScheduleUpdateRequest is the request body for the singleton schedule.
type ScheduleUpdateRequest struct {
	CronExpression string `json:"cron_expression" binding:"required"`
	IsEnabled      bool   `json:"is_enabled"`
}

// CredentialSaveRequest is the request body for rotating a layer's
// signing credential.
type CredentialSaveRequest struct {
	PrivateKeyPEM  string `json:"private_key_pem" binding:"required"`
	SignerID       string `json:"signer_id" binding:"required,max=100"`
	KeyFingerprint string `json:"key_fingerprint" binding:"required,max=100"`
}

// CredentialResponse echoes the saved credential without key material.
type CredentialResponse struct {
	Layer          string `json:"layer"`
	SignerID       string `json:"signer_id"`
	KeyFingerprint string `json:"key_fingerprint"`
	UpdatedAt      string `json:"updated_at"`
}

// GatewayCallRequest is the request body for the read proxy.
type GatewayCallRequest struct {
	Layer  string         `json:"layer" binding:"required"`
	Params map[string]any `json:"params"`
	Force  bool           `json:"force"`
}

// RunResultResponse is one beneficiary's run outcome.
type RunResultResponse struct {
	BeneficiaryID string         `json:"beneficiary_id"`
	Skipped       bool           `json:"skipped"`
	Payout        *domain.Payout `json:"payout,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// BatchResultResponse summarizes one scheduled batch.
type BatchResultResponse struct {
	Created int                 `json:"created"`
	Total   int                 `json:"total"`
	Results []RunResultResponse `json:"results"`
}

// ParseDate parses a YYYY-MM-DD request field as a UTC day.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// ToRunResult converts a domain run result for the wire.
func ToRunResult(r *domain.PayoutRunResult) RunResultResponse {
	out := RunResultResponse{
		BeneficiaryID: r.BeneficiaryID.String(),
		Skipped:       r.Skipped,
		Payout:        r.Payout,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

// ToBatchResult converts a domain batch result for the wire.
func ToBatchResult(b *domain.BatchRunResult) BatchResultResponse {
	out := BatchResultResponse{
		Created: b.Created,
		Total:   b.Total,
		Results: make([]RunResultResponse, 0, len(b.Results)),
	}
	for i := range b.Results {
		out.Results = append(out.Results, ToRunResult(&b.Results[i]))
	}
	return out
}
