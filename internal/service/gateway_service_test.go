package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"vending-payout-console/config"
	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"
	"vending-payout-console/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- In-memory fakes shared by the service tests ---

type memoryResponseCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry
	now     func() time.Time
}

func newMemoryResponseCache() *memoryResponseCache {
	return &memoryResponseCache{entries: make(map[string]*domain.CacheEntry), now: time.Now}
}

func (c *memoryResponseCache) Get(_ context.Context, key string) (*domain.CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (c *memoryResponseCache) Put(_ context.Context, key string, payload json.RawMessage, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &domain.CacheEntry{CacheKey: key, Payload: payload, CachedAt: c.now(), TTL: ttl}
	return nil
}

type memoryAdmissionStore struct {
	mu   sync.Mutex
	next map[string]time.Time
}

func newMemoryAdmissionStore() *memoryAdmissionStore {
	return &memoryAdmissionStore{next: make(map[string]time.Time)}
}

func (s *memoryAdmissionStore) NextAllowedAt(_ context.Context, key string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.next[key]
	if !ok {
		return nil, nil
	}
	return &at, nil
}

func (s *memoryAdmissionStore) SetNextAllowed(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[key] = at
	return nil
}

// stubTransport counts dispatches and answers per method.
type stubTransport struct {
	mu       sync.Mutex
	calls    int
	payloads map[string]json.RawMessage
	errs     map[string]error
	lastReq  *ports.TransportRequest
}

func newStubTransport() *stubTransport {
	return &stubTransport{
		payloads: make(map[string]json.RawMessage),
		errs:     make(map[string]error),
	}
}

func (t *stubTransport) Do(_ context.Context, _ domain.Layer, req *ports.TransportRequest) (json.RawMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.lastReq = req
	if err, ok := t.errs[req.Method]; ok {
		return nil, err
	}
	if payload, ok := t.payloads[req.Method]; ok {
		return payload, nil
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (t *stubTransport) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// fakeSigner returns a fixed signature without touching key material.
type fakeSigner struct{ err error }

func (f *fakeSigner) Sign(_ domain.Layer, _ string, _ map[string]any) (*domain.Signature, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Signature{Value: "c2ln", SignerID: "signer-1", KeyFingerprint: "fp-1", Timestamp: 1756400000}, nil
}

func defaultGatewayConfig() config.GatewayConfig {
	return config.GatewayConfig{
		Timeout:          8 * time.Second,
		ListTTL:          5 * time.Minute,
		LookupTTL:        0,
		ReadInterval:     30 * time.Second,
		MutatingInterval: 5 * time.Second,
	}
}

type gatewayDeps struct {
	gw        *GatewayService
	cache     *memoryResponseCache
	admission *memoryAdmissionStore
	transport *stubTransport
}

func setupGateway(cfg config.GatewayConfig) *gatewayDeps {
	d := &gatewayDeps{
		cache:     newMemoryResponseCache(),
		admission: newMemoryAdmissionStore(),
		transport: newStubTransport(),
	}
	d.gw = NewGatewayService(&fakeSigner{}, d.cache, d.admission, d.transport, cfg, zerolog.Nop())
	return d
}

// --- Tests ---

func TestGateway_Call_ReadCachedWithinTTL(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	ctx := context.Background()
	params := map[string]any{"from": "2026-08-01"}

	first, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodListPayments, params, domain.CallOptions{})
	require.NoError(t, err)
	assert.False(t, first.Meta.Cached)
	assert.Equal(t, 1, d.transport.callCount())

	second, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodListPayments, params, domain.CallOptions{})
	require.NoError(t, err)
	assert.True(t, second.Meta.Cached)
	assert.Equal(t, first.Payload, second.Payload)
	assert.GreaterOrEqual(t, second.Meta.CacheAgeSeconds, int64(0))
	assert.Equal(t, 1, d.transport.callCount(), "second read within TTL must not hit the transport")
}

func TestGateway_Call_ForceWithinWindowIsDeferred(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	ctx := context.Background()

	_, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodGetBalance, nil, domain.CallOptions{})
	require.NoError(t, err)

	result, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodGetBalance, nil, domain.CallOptions{Force: true})
	require.Error(t, err)
	assert.True(t, apperror.IsRateLimitDeferred(err))
	require.NotNil(t, result)
	assert.NotNil(t, result.Meta.NextAllowedAt, "deferral carries the reopen time")
	assert.Nil(t, result.Payload)
	assert.Equal(t, 1, d.transport.callCount())
}

func TestGateway_Call_WindowOutlivesCachedPayload(t *testing.T) {
	// Lookup methods are not cached, but their admission window still closes.
	d := setupGateway(defaultGatewayConfig())
	ctx := context.Background()
	params := map[string]any{"id": "b-1"}

	_, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodGetBeneficiary, params, domain.CallOptions{})
	require.NoError(t, err)

	_, err = d.gw.Call(ctx, domain.LayerLive, domain.MethodGetBeneficiary, params, domain.CallOptions{})
	require.Error(t, err)
	assert.True(t, apperror.IsRateLimitDeferred(err))
	assert.Equal(t, 1, d.transport.callCount())
}

func TestGateway_Call_MutatingNeverCached(t *testing.T) {
	cfg := defaultGatewayConfig()
	d := setupGateway(cfg)
	ctx := context.Background()
	params := map[string]any{"amount": "100.00"}

	for i := 0; i < 2; i++ {
		result, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodTransferMoney, params, domain.CallOptions{})
		require.NoError(t, err)
		assert.False(t, result.Meta.Cached)
	}
	assert.Equal(t, 2, d.transport.callCount(), "mutating calls always dispatch")
	assert.Empty(t, d.cache.entries, "mutating results must never be cached")
}

func TestGateway_Call_DuplicateSubmissionPassesThrough(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	d.transport.errs[domain.MethodTransferMoney] = apperror.ErrDuplicateSubmission(domain.MethodTransferMoney)

	_, err := d.gw.Call(context.Background(), domain.LayerLive, domain.MethodTransferMoney, nil, domain.CallOptions{})
	require.Error(t, err)
	assert.True(t, apperror.IsDuplicateSubmission(err))
	assert.False(t, apperror.IsTimeout(err))
}

func TestGateway_Call_TimeoutClassified(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	d.transport.errs[domain.MethodGetBalance] = context.DeadlineExceeded

	_, err := d.gw.Call(context.Background(), domain.LayerLive, domain.MethodGetBalance, nil, domain.CallOptions{})
	require.Error(t, err)
	assert.True(t, apperror.IsTimeout(err))
	assert.False(t, apperror.IsDuplicateSubmission(err))
}

func TestGateway_Call_RemoteErrorVerbatim(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	d.transport.errs[domain.MethodTransferMoney] = apperror.ErrRemote("insufficient virtual account balance")

	_, err := d.gw.Call(context.Background(), domain.LayerLive, domain.MethodTransferMoney, nil, domain.CallOptions{})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeRemote, appErr.Code)
	assert.Equal(t, "insufficient virtual account balance", appErr.Message)
}

func TestGateway_Call_FailureStillClosesWindow(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	d.transport.errs[domain.MethodGetBalance] = apperror.ErrRemote("backend unavailable")
	ctx := context.Background()

	_, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodGetBalance, nil, domain.CallOptions{})
	require.Error(t, err)

	key := domain.CacheKey(domain.LayerLive, domain.MethodGetBalance, nil)
	next, err := d.admission.NextAllowedAt(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, next, "failed dispatch must still update next_allowed_at")
}

func TestGateway_Call_UnknownMethod(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())

	_, err := d.gw.Call(context.Background(), domain.LayerLive, "drop_table", nil, domain.CallOptions{})
	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeUnknownMethod, appErr.Code)
	assert.Equal(t, 0, d.transport.callCount())
}

func TestGateway_Call_SigningErrorBeforeDispatch(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())
	d.gw.signer = &fakeSigner{err: apperror.ErrNoCredential("live")}

	_, err := d.gw.Call(context.Background(), domain.LayerLive, domain.MethodGetBalance, nil, domain.CallOptions{})
	require.Error(t, err)
	assert.True(t, apperror.IsSigning(err))
	assert.Equal(t, 0, d.transport.callCount())
}

func TestGateway_Call_ExpiredEntryRedispatches(t *testing.T) {
	cfg := defaultGatewayConfig()
	cfg.ReadInterval = 0 // open window immediately
	d := setupGateway(cfg)
	ctx := context.Background()

	_, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodListPayments, nil, domain.CallOptions{})
	require.NoError(t, err)

	// Age the cached entry past its TTL.
	key := domain.CacheKey(domain.LayerLive, domain.MethodListPayments, nil)
	d.cache.mu.Lock()
	d.cache.entries[key].CachedAt = time.Now().Add(-10 * time.Minute)
	d.cache.mu.Unlock()

	result, err := d.gw.Call(ctx, domain.LayerLive, domain.MethodListPayments, nil, domain.CallOptions{})
	require.NoError(t, err)
	assert.False(t, result.Meta.Cached)
	assert.Equal(t, 2, d.transport.callCount())
}

func TestGateway_Call_SignedRequestReachesTransport(t *testing.T) {
	d := setupGateway(defaultGatewayConfig())

	_, err := d.gw.Call(context.Background(), domain.LayerSandbox, domain.MethodGetBalance, nil, domain.CallOptions{})
	require.NoError(t, err)

	req := d.transport.lastReq
	require.NotNil(t, req)
	assert.Equal(t, domain.MethodGetBalance, req.Method)
	assert.Equal(t, "signer-1", req.Signature.SignerID)
	assert.Equal(t, "fp-1", req.Signature.KeyFingerprint)
	assert.NotEmpty(t, req.Signature.Value)
}
