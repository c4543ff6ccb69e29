package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"

	"github.com/shopspring/decimal"
)

// RevenueSource implements ports.RevenueSource through the gateway's
// machine-revenue read method, so revenue lookups share the cache and
// admission windows with every other read.
type RevenueSource struct {
	gateway ports.Gateway
	layer   domain.Layer
}

// NewRevenueSource creates a gateway-backed revenue source.
func NewRevenueSource(gateway ports.Gateway, layer domain.Layer) *RevenueSource {
	return &RevenueSource{gateway: gateway, layer: layer}
}

type machineRevenuePayload struct {
	GrossSales decimal.Decimal `json:"gross_sales"`
}

// MachineSales reports the machine's gross sales for [from, to].
func (r *RevenueSource) MachineSales(ctx context.Context, machineID string, from, to time.Time) (decimal.Decimal, error) {
	result, err := r.gateway.Call(ctx, r.layer, domain.MethodGetMachineRevenue, map[string]any{
		"machine_id": machineID,
		"from":       from.Format("2006-01-02"),
		"to":         to.Format("2006-01-02"),
	}, domain.CallOptions{})
	if err != nil {
		return decimal.Zero, err
	}

	var payload machineRevenuePayload
	if err := json.Unmarshal(result.Payload, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("decode machine revenue for %s: %w", machineID, err)
	}
	return payload.GrossSales, nil
}
