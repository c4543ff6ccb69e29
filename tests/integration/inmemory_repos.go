package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vending-payout-console/internal/core/domain"
	"vending-payout-console/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Credential Repo ---

type inMemoryCredentialRepo struct {
	mu    sync.RWMutex
	creds map[domain.Layer]*domain.Credential
	keys  map[domain.Layer]string // sealed key material
}

func newInMemoryCredentialRepo() *inMemoryCredentialRepo {
	return &inMemoryCredentialRepo{
		creds: make(map[domain.Layer]*domain.Credential),
		keys:  make(map[domain.Layer]string),
	}
}

func (r *inMemoryCredentialRepo) Save(ctx context.Context, cred *domain.Credential, encryptedKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cred
	copied.PrivateKeyPEM = ""
	r.creds[cred.Layer] = &copied
	r.keys[cred.Layer] = encryptedKey
	return nil
}

func (r *inMemoryCredentialRepo) Get(ctx context.Context, layer domain.Layer) (*domain.Credential, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[layer]
	if !ok {
		return nil, "", nil
	}
	copied := *cred
	return &copied, r.keys[layer], nil
}

// --- In-Memory Beneficiary Repo ---

type inMemoryBeneficiaryRepo struct {
	mu            sync.RWMutex
	beneficiaries map[uuid.UUID]*domain.Beneficiary
	order         []uuid.UUID
	assignments   *inMemoryAssignmentRepo
}

func newInMemoryBeneficiaryRepo(assignments *inMemoryAssignmentRepo) *inMemoryBeneficiaryRepo {
	return &inMemoryBeneficiaryRepo{
		beneficiaries: make(map[uuid.UUID]*domain.Beneficiary),
		assignments:   assignments,
	}
}

func (r *inMemoryBeneficiaryRepo) Create(ctx context.Context, b *domain.Beneficiary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *b
	r.beneficiaries[b.ID] = &copied
	r.order = append(r.order, b.ID)
	return nil
}

func (r *inMemoryBeneficiaryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Beneficiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beneficiaries[id]
	if !ok {
		return nil, nil
	}
	copied := *b
	return &copied, nil
}

func (r *inMemoryBeneficiaryRepo) ListWithActiveAssignments(ctx context.Context) ([]domain.Beneficiary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Beneficiary
	for _, id := range r.order {
		active, err := r.assignments.ListActiveByBeneficiary(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(active) > 0 {
			out = append(out, *r.beneficiaries[id])
		}
	}
	return out, nil
}

// --- In-Memory Assignment Repo ---

type inMemoryAssignmentRepo struct {
	mu          sync.RWMutex
	assignments []domain.MachineAssignment
}

func newInMemoryAssignmentRepo() *inMemoryAssignmentRepo {
	return &inMemoryAssignmentRepo{}
}

func (r *inMemoryAssignmentRepo) Create(ctx context.Context, a *domain.MachineAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assignments = append(r.assignments, *a)
	return nil
}

func (r *inMemoryAssignmentRepo) Supersede(ctx context.Context, machineID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.assignments {
		if r.assignments[i].MachineID == machineID && r.assignments[i].Active() {
			t := at
			r.assignments[i].SupersededAt = &t
		}
	}
	return nil
}

func (r *inMemoryAssignmentRepo) ListActiveByBeneficiary(ctx context.Context, beneficiaryID uuid.UUID) ([]domain.MachineAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.MachineAssignment
	for _, a := range r.assignments {
		if a.BeneficiaryID == beneficiaryID && a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MachineID < out[j].MachineID })
	return out, nil
}

// --- In-Memory Payout Repo ---

type inMemoryPayoutRepo struct {
	mu      sync.RWMutex
	payouts map[uuid.UUID]*domain.Payout
	order   []uuid.UUID
}

func newInMemoryPayoutRepo() *inMemoryPayoutRepo {
	return &inMemoryPayoutRepo{payouts: make(map[uuid.UUID]*domain.Payout)}
}

func (r *inMemoryPayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.payouts[p.ID] = &copied
	r.order = append(r.order, p.ID)
	return nil
}

func (r *inMemoryPayoutRepo) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok || p.Status != domain.PayoutStatusPending {
		return fmt.Errorf("payout %s is not pending", id)
	}
	p.Status = domain.PayoutStatusProcessing
	return nil
}

func (r *inMemoryPayoutRepo) MarkCompleted(ctx context.Context, id uuid.UUID, externalReference string, executedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok || p.Status != domain.PayoutStatusProcessing {
		return fmt.Errorf("payout %s is not processing", id)
	}
	p.Status = domain.PayoutStatusCompleted
	p.ExternalReference = &externalReference
	p.ExecutedAt = &executedAt
	return nil
}

func (r *inMemoryPayoutRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, executedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payouts[id]
	if !ok || p.Status != domain.PayoutStatusProcessing {
		return fmt.Errorf("payout %s is not processing", id)
	}
	p.Status = domain.PayoutStatusFailed
	p.ErrorMessage = &errorMessage
	p.ExecutedAt = &executedAt
	return nil
}

func (r *inMemoryPayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payouts[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (r *inMemoryPayoutRepo) GetLastCompleted(ctx context.Context, beneficiaryID uuid.UUID) (*domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *domain.Payout
	for _, id := range r.order {
		p := r.payouts[id]
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

func (r *inMemoryPayoutRepo) List(ctx context.Context, params ports.PayoutListParams) ([]domain.Payout, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Payout
	for _, id := range r.order {
		p := r.payouts[id]
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

// --- In-Memory Schedule Repo ---

type inMemoryScheduleRepo struct {
	mu       sync.RWMutex
	schedule *domain.PayoutSchedule
	lastRun  *time.Time
}

func newInMemoryScheduleRepo() *inMemoryScheduleRepo {
	return &inMemoryScheduleRepo{}
}

func (r *inMemoryScheduleRepo) Get(ctx context.Context) (*domain.PayoutSchedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.schedule == nil {
		return nil, nil
	}
	copied := *r.schedule
	copied.LastRunAt = r.lastRun
	return &copied, nil
}

func (r *inMemoryScheduleRepo) Upsert(ctx context.Context, s *domain.PayoutSchedule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.schedule = &copied
	return nil
}

func (r *inMemoryScheduleRepo) SetLastRun(ctx context.Context, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRun = &at
	return nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation for in-memory testing.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
