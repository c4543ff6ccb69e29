package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLayer_Valid(t *testing.T) {
	assert.True(t, LayerSandbox.Valid())
	assert.True(t, LayerLive.Valid())
	assert.False(t, Layer("staging").Valid())
}

func TestPayout_IsTerminal(t *testing.T) {
	p := &Payout{Status: PayoutStatusPending}
	assert.False(t, p.IsTerminal())
	p.Status = PayoutStatusProcessing
	assert.False(t, p.IsTerminal())
	p.Status = PayoutStatusCompleted
	assert.True(t, p.IsTerminal())
	p.Status = PayoutStatusFailed
	assert.True(t, p.IsTerminal())
}

func TestMachineAssignment_ValidCommission(t *testing.T) {
	a := &MachineAssignment{CommissionPercent: decimal.RequireFromString("10.5")}
	assert.True(t, a.ValidCommission())

	a.CommissionPercent = decimal.RequireFromString("10.55")
	assert.False(t, a.ValidCommission(), "more than one decimal place")

	a.CommissionPercent = decimal.RequireFromString("-1")
	assert.False(t, a.ValidCommission())

	a.CommissionPercent = decimal.RequireFromString("100")
	assert.True(t, a.ValidCommission())

	a.CommissionPercent = decimal.RequireFromString("100.1")
	assert.False(t, a.ValidCommission())
}

func TestMachineAssignment_Active(t *testing.T) {
	a := &MachineAssignment{}
	assert.True(t, a.Active())
	now := time.Now()
	a.SupersededAt = &now
	assert.False(t, a.Active())
}

func TestLookupMethod(t *testing.T) {
	spec, ok := LookupMethod(MethodTransferMoney)
	assert.True(t, ok)
	assert.Equal(t, MethodKindMutating, spec.Kind)
	assert.Equal(t, TTLClassNone, spec.TTLClass)

	spec, ok = LookupMethod(MethodListPayments)
	assert.True(t, ok)
	assert.Equal(t, MethodKindRead, spec.Kind)
	assert.Equal(t, TTLClassList, spec.TTLClass)

	_, ok = LookupMethod("drop_table")
	assert.False(t, ok)
}

func TestCanonicalParams_OrderStable(t *testing.T) {
	a := CanonicalParams(map[string]any{"b": 2, "a": "x", "c": true})
	b := CanonicalParams(map[string]any{"c": true, "a": "x", "b": 2})
	assert.Equal(t, a, b)
	assert.Equal(t, `{"a":"x","b":2,"c":true}`, a)
	assert.Equal(t, "{}", CanonicalParams(nil))
}

func TestCacheKey(t *testing.T) {
	k1 := CacheKey(LayerLive, MethodListPayments, map[string]any{"from": "2026-01-01"})
	k2 := CacheKey(LayerLive, MethodListPayments, map[string]any{"from": "2026-01-01"})
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	// Layer, method, and params all scope the key.
	assert.NotEqual(t, k1, CacheKey(LayerSandbox, MethodListPayments, map[string]any{"from": "2026-01-01"}))
	assert.NotEqual(t, k1, CacheKey(LayerLive, MethodGetBalance, map[string]any{"from": "2026-01-01"}))
	assert.NotEqual(t, k1, CacheKey(LayerLive, MethodListPayments, map[string]any{"from": "2026-02-01"}))
}

func TestCacheEntry_AgeAndLive(t *testing.T) {
	now := time.Now()
	e := &CacheEntry{CachedAt: now.Add(-90 * time.Second), TTL: 2 * time.Minute}
	assert.Equal(t, 90*time.Second, e.Age(now))
	assert.True(t, e.Live(now))

	e.TTL = time.Minute
	assert.False(t, e.Live(now))

	// Zero TTL entries are never live (lookup class is not cached).
	e.TTL = 0
	assert.False(t, e.Live(now))
}
