package ports

import (
	"context"
	"encoding/json"
	"time"

	"vending-payout-console/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CredentialProvider hands out immutable credential snapshots. A snapshot
// taken before a swap stays valid for the duration of the call that took it.
type CredentialProvider interface {
	Active(layer domain.Layer) (*domain.Credential, error)
}

// CredentialAdmin is the configuration surface for credentials.
// Save validates the key material before anything is persisted or swapped.
type CredentialAdmin interface {
	Save(ctx context.Context, layer domain.Layer, privateKeyPEM, signerID, keyFingerprint string) error
}

// Signer produces the signature envelope for one outbound call.
type Signer interface {
	Sign(layer domain.Layer, method string, params map[string]any) (*domain.Signature, error)
}

// ResponseCache stores read-call results keyed by cache key.
type ResponseCache interface {
	Get(ctx context.Context, cacheKey string) (*domain.CacheEntry, error) // nil on miss
	Put(ctx context.Context, cacheKey string, payload json.RawMessage, ttl time.Duration) error
}

// AdmissionStore is the rate-limit side-table: the earliest instant a fresh
// call for a cache key is allowed, independent of cached payload lifetime.
type AdmissionStore interface {
	NextAllowedAt(ctx context.Context, cacheKey string) (*time.Time, error) // nil when the window is open
	SetNextAllowed(ctx context.Context, cacheKey string, at time.Time) error
}

// TransportRequest is one signed outbound call handed to the transport.
type TransportRequest struct {
	Method    string
	Params    map[string]any
	Signature domain.Signature
}

// Transport dispatches a signed request to the remote platform and returns
// its raw result payload. Remote rejections come back as classified
// apperror values (duplicate-submission vs. generic remote failure);
// timeouts surface as context deadline errors for the gateway to classify.
type Transport interface {
	Do(ctx context.Context, layer domain.Layer, req *TransportRequest) (json.RawMessage, error)
}

// Gateway is the single entry point for every remote platform call.
type Gateway interface {
	Call(ctx context.Context, layer domain.Layer, method string, params map[string]any, opts domain.CallOptions) (*domain.CallResult, error)
}

// RevenueSource is the collaborating terminal-data service (out of scope
// here) that reports a machine's gross sales for a date range.
type RevenueSource interface {
	MachineSales(ctx context.Context, machineID string, from, to time.Time) (decimal.Decimal, error)
}

// PayoutCalculator aggregates a beneficiary's period revenue into a payout
// preview without persisting anything.
type PayoutCalculator interface {
	Calculate(ctx context.Context, beneficiaryID uuid.UUID, periodEnd time.Time) (*domain.PayoutComputation, error)
}

// PayoutScheduler executes payouts, one beneficiary or the whole batch.
type PayoutScheduler interface {
	RunOne(ctx context.Context, beneficiaryID uuid.UUID, periodEnd time.Time) (*domain.PayoutRunResult, error)
	RunScheduled(ctx context.Context) (*domain.BatchRunResult, error)
	GetSchedule(ctx context.Context) (*domain.PayoutSchedule, error)
	UpdateSchedule(ctx context.Context, cronExpression string, enabled bool) (*domain.PayoutSchedule, error)
}

// KeyVault handles at-rest encryption of credential key material.
type KeyVault interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// TokenService validates staff console tokens.
type TokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(tokenString string) (string, error) // returns subject
}
