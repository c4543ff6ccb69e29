package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// noopTx satisfies the transactor contract without a real database.
type noopTx struct{ pgx.Tx }

func (t *noopTx) Rollback(_ context.Context) error { return nil }
func (t *noopTx) Commit(_ context.Context) error   { return nil }

type noopTransactor struct{}

func (noopTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &noopTx{}, nil }

// memStore is a single in-memory backing store implementing the
// beneficiary, assignment, payout, and schedule repositories.
type memStore struct {
	mu            sync.Mutex
	beneficiaries map[uuid.UUID]*domain.Beneficiary
	benOrder      []uuid.UUID
	assignments   []domain.MachineAssignment
	payouts       map[uuid.UUID]*domain.Payout
	payoutOrder   []uuid.UUID
	schedule      *domain.PayoutSchedule
	lastRun       *time.Time

	createPayoutErr error
	listBensErr     error
}

func newMemStore() *memStore {
	return &memStore{
		beneficiaries: make(map[uuid.UUID]*domain.Beneficiary),
		payouts:       make(map[uuid.UUID]*domain.Payout),
	}
}

// --- beneficiary records ---

func (m *memStore) CreateBeneficiary(_ context.Context, b *domain.Beneficiary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *b
	m.beneficiaries[b.ID] = &copied
	m.benOrder = append(m.benOrder, b.ID)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.beneficiaries[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (m *memStore) ListWithActiveAssignments(_ context.Context) ([]domain.Beneficiary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listBensErr != nil {
		return nil, m.listBensErr
	}
	var out []domain.Beneficiary
	for _, id := range m.benOrder {
		for _, a := range m.assignments {
			if a.BeneficiaryID == id && a.Active() {
				out = append(out, *m.beneficiaries[id])
				break
			}
		}
	}
	return out, nil
}

// --- ports.AssignmentRepository ---

func (m *memStore) CreateAssignment(_ context.Context, a *domain.MachineAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, *a)
	return nil
}

func (m *memStore) Supersede(_ context.Context, machineID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.assignments {
		if m.assignments[i].MachineID == machineID && m.assignments[i].Active() {
			t := at
			m.assignments[i].SupersededAt = &t
		}
	}
	return nil
}

func (m *memStore) ListActiveByBeneficiary(_ context.Context, beneficiaryID uuid.UUID) ([]domain.MachineAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.MachineAssignment
	for _, a := range m.assignments {
		if a.BeneficiaryID == beneficiaryID && a.Active() {
			out = append(out, a)
		}
	}
	return out, nil
}

// --- ports.PayoutRepository ---

func (m *memStore) CreatePayout(_ context.Context, _ pgx.Tx, p *domain.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createPayoutErr != nil {
		return m.createPayoutErr
	}
	copied := *p
	m.payouts[p.ID] = &copied
	m.payoutOrder = append(m.payoutOrder, p.ID)
	return nil
}

func (m *memStore) MarkProcessing(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != domain.PayoutStatusPending {
		return fmt.Errorf("payout %s not in PENDING", id)
	}
	p.Status = domain.PayoutStatusProcessing
	return nil
}

func (m *memStore) MarkCompleted(_ context.Context, id uuid.UUID, ref string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != domain.PayoutStatusProcessing {
		return fmt.Errorf("payout %s not in PROCESSING", id)
	}
	p.Status = domain.PayoutStatusCompleted
	p.ExternalReference = &ref
	p.ExecutedAt = &executedAt
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id uuid.UUID, msg string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok || p.Status != domain.PayoutStatusProcessing {
		return fmt.Errorf("payout %s not in PROCESSING", id)
	}
	p.Status = domain.PayoutStatusFailed
	p.ErrorMessage = &msg
	p.ExecutedAt = &executedAt
	return nil
}

func (m *memStore) GetPayout(_ context.Context, id uuid.UUID) (*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payouts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *memStore) GetLastCompleted(_ context.Context, beneficiaryID uuid.UUID) (*domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *domain.Payout
	for _, id := range m.payoutOrder {
		p := m.payouts[id]
		if p.BeneficiaryID != beneficiaryID || p.Status != domain.PayoutStatusCompleted {
			continue
		}
		if last == nil || p.PeriodEnd.After(last.PeriodEnd) {
			last = p
		}
	}
	if last == nil {
		return nil, nil
	}
	copied := *last
	return &copied, nil
}

func (m *memStore) List(_ context.Context, params ports.PayoutListParams) ([]domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Payout
	for _, id := range m.payoutOrder {
		p := m.payouts[id]
		if params.BeneficiaryID != nil && p.BeneficiaryID != *params.BeneficiaryID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		out = append(out, *p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (m *memStore) payoutCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payouts)
}

// --- ports.ScheduleRepository ---

func (m *memStore) Get(_ context.Context) (*domain.PayoutSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.schedule == nil {
		return nil, nil
	}
	copied := *m.schedule
	copied.LastRunAt = m.lastRun
	return &copied, nil
}

func (m *memStore) Upsert(_ context.Context, s *domain.PayoutSchedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *s
	m.schedule = &copied
	return nil
}

func (m *memStore) SetLastRun(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRun = &at
	return nil
}

// payoutRepoFacade adapts memStore to ports.PayoutRepository (Create name
// clashes with the beneficiary repo on the shared store).
type payoutRepoFacade struct{ s *memStore }

func (f payoutRepoFacade) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	return f.s.CreatePayout(ctx, tx, p)
}
func (f payoutRepoFacade) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return f.s.MarkProcessing(ctx, id)
}
func (f payoutRepoFacade) MarkCompleted(ctx context.Context, id uuid.UUID, ref string, at time.Time) error {
	return f.s.MarkCompleted(ctx, id, ref, at)
}
func (f payoutRepoFacade) MarkFailed(ctx context.Context, id uuid.UUID, msg string, at time.Time) error {
	return f.s.MarkFailed(ctx, id, msg, at)
}
func (f payoutRepoFacade) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	return f.s.GetPayout(ctx, id)
}
func (f payoutRepoFacade) GetLastCompleted(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	return f.s.GetLastCompleted(ctx, id)
}
func (f payoutRepoFacade) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, error) {
	return f.s.List(ctx, params)
}

// beneficiaryRepoFacade adapts memStore to ports.BeneficiaryRepository.
type beneficiaryRepoFacade struct{ s *memStore }

func (f beneficiaryRepoFacade) Create(ctx context.Context, b *domain.Beneficiary) error {
	return f.s.CreateBeneficiary(ctx, b)
}
func (f beneficiaryRepoFacade) GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	return f.s.GetByID(ctx, id)
}
func (f beneficiaryRepoFacade) ListWithActiveAssignments(ctx context.Context) ([]domain.Beneficiary, error) {
	return f.s.ListWithActiveAssignments(ctx)
}

// assignmentRepoFacade adapts memStore to ports.AssignmentRepository.
type assignmentRepoFacade struct{ s *memStore }

func (f assignmentRepoFacade) Create(ctx context.Context, a *domain.MachineAssignment) error {
	return f.s.CreateAssignment(ctx, a)
}
func (f assignmentRepoFacade) Supersede(ctx context.Context, machineID string, at time.Time) error {
	return f.s.Supersede(ctx, machineID, at)
}
func (f assignmentRepoFacade) ListActiveByBeneficiary(ctx context.Context, id uuid.UUID) ([]domain.MachineAssignment, error) {
	return f.s.ListActiveByBeneficiary(ctx, id)
}

// fakeRevenue answers machine sales from a fixed table.
type fakeRevenue struct {
	mu    sync.Mutex
	sales map[string]decimal.Decimal
	calls int
}

func newFakeRevenue() *fakeRevenue {
	return &fakeRevenue{sales: make(map[string]decimal.Decimal)}
}

func (r *fakeRevenue) MachineSales(_ context.Context, machineID string, _, _ time.Time) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if s, ok := r.sales[machineID]; ok {
		return s, nil
	}
	return decimal.Zero, nil
}

// fakeGateway answers transfer_money calls, optionally failing per virtual
// account, and records every request it receives.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []map[string]any
	failFor  map[string]error // virtual_account_id -> error
	nextRef  int
	blocked  chan struct{} // when non-nil, Do blocks until closed
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[string]error)}
}

func (g *fakeGateway) Call(_ context.Context, _ domain.Layer, method string, params map[string]any, _ domain.CallOptions) (*domain.CallResult, error) {
	g.mu.Lock()
	blocked := g.blocked
	g.mu.Unlock()
	if blocked != nil {
		<-blocked
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, params)

	if va, _ := params["virtual_account_id"].(string); va != "" {
		if err, ok := g.failFor[va]; ok {
			return nil, err
		}
	}
	g.nextRef++
	payload, _ := json.Marshal(map[string]string{"payment_id": fmt.Sprintf("pay-%d", g.nextRef)})
	_ = method
	return &domain.CallResult{Payload: payload}, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
