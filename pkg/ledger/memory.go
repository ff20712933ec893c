package ledger

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs.
// Transactions are serialised behind one mutex; a failed callback restores the
// state captured when the outermost transaction began.
type MemoryStore struct {
	mu   sync.Mutex
	data memoryData
	last time.Time
	now  func() time.Time
}

type memoryData struct {
	plans     map[uuid.UUID]Plan
	providers map[uuid.UUID]Provider
	methods   map[uuid.UUID]PaymentMethod
	subs      map[uuid.UUID]Subscription
	txs       map[uuid.UUID]Transaction
}

func (d memoryData) clone() memoryData {
	return memoryData{
		plans:     maps.Clone(d.plans),
		providers: maps.Clone(d.providers),
		methods:   maps.Clone(d.methods),
		subs:      maps.Clone(d.subs),
		txs:       maps.Clone(d.txs),
	}
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryClock overrides the clock used for created_at stamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore returns an empty store with the given providers registered.
func NewMemoryStore(providers []string, opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		data: memoryData{
			plans:     make(map[uuid.UUID]Plan),
			providers: make(map[uuid.UUID]Provider),
			methods:   make(map[uuid.UUID]PaymentMethod),
			subs:      make(map[uuid.UUID]Subscription),
			txs:       make(map[uuid.UUID]Transaction),
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, name := range providers {
		p := Provider{ID: uuid.New(), Name: name}
		s.data.providers[p.ID] = p
	}
	return s
}

// AddPlan inserts a plan into the catalog. A zero ID is replaced with a new one.
func (s *MemoryStore) AddPlan(p Plan) Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.data.plans[p.ID] = p
	return p
}

type memoryTxKey struct{}

// InTx runs fn with exclusive access to the store.
func (s *MemoryStore) InTx(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context, tx Tx) error) error {
	if fn == nil {
		return ErrNilCallback
	}
	if tx, ok := ctx.Value(memoryTxKey{}).(*memoryTx); ok && tx.s == s {
		return fn(ctx, tx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	txCtx, hooks := WithCommitHooks(ctx)
	if err := s.apply(txCtx, fn); err != nil {
		return err
	}
	hooks.Run(ctx)
	return nil
}

// apply runs fn under the store mutex and restores the snapshot on error.
func (s *MemoryStore) apply(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	tx := &memoryTx{s: s}
	if err := fn(context.WithValue(ctx, memoryTxKey{}, tx), tx); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// stamp returns a strictly increasing timestamp so creation order is total.
func (s *MemoryStore) stamp() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type memoryTx struct {
	s *MemoryStore
}

func (t *memoryTx) GetPlan(_ context.Context, id uuid.UUID) (*Plan, error) {
	p, ok := t.s.data.plans[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (t *memoryTx) ListPlans(_ context.Context, activeOnly bool) ([]Plan, error) {
	out := make([]Plan, 0, len(t.s.data.plans))
	for _, p := range t.s.data.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Plan) int {
		return cmp.Or(cmp.Compare(a.Price, b.Price), cmp.Compare(a.Name, b.Name))
	})
	return out, nil
}

func (t *memoryTx) GetProviderByName(_ context.Context, name string) (*Provider, error) {
	for _, p := range t.s.data.providers {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) GetPaymentMethod(_ context.Context, userID, id uuid.UUID) (*PaymentMethod, error) {
	pm, ok := t.s.data.methods[id]
	if !ok || !pm.IsActive || pm.UserID != userID {
		return nil, ErrNotFound
	}
	pm = clonePaymentMethod(pm)
	return &pm, nil
}

func (t *memoryTx) FindPaymentMethod(_ context.Context, providerID uuid.UUID, providerMethodID string) (*PaymentMethod, error) {
	for _, pm := range t.s.data.methods {
		if pm.ProviderID == providerID && pm.ProviderMethodID == providerMethodID {
			pm = clonePaymentMethod(pm)
			return &pm, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListPaymentMethods(_ context.Context, userID uuid.UUID) ([]PaymentMethod, error) {
	out := make([]PaymentMethod, 0)
	for _, pm := range t.s.data.methods {
		if pm.UserID == userID && pm.IsActive {
			out = append(out, clonePaymentMethod(pm))
		}
	}
	slices.SortFunc(out, func(a, b PaymentMethod) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (t *memoryTx) GetDefaultPaymentMethod(_ context.Context, userID uuid.UUID) (*PaymentMethod, error) {
	for _, pm := range t.s.data.methods {
		if pm.UserID == userID && pm.IsActive && pm.IsDefault {
			pm = clonePaymentMethod(pm)
			return &pm, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) CountPaymentMethods(_ context.Context, userID uuid.UUID) (int, error) {
	n := 0
	for _, pm := range t.s.data.methods {
		if pm.UserID == userID && pm.IsActive {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) CreatePaymentMethod(_ context.Context, pm *PaymentMethod) error {
	for _, existing := range t.s.data.methods {
		if existing.ProviderID == pm.ProviderID && existing.ProviderMethodID == pm.ProviderMethodID {
			return ErrDuplicate
		}
	}
	if pm.IsDefault && pm.IsActive && t.hasDefault(pm.UserID, uuid.Nil) {
		return ErrDuplicate
	}
	if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = t.s.stamp()
	}
	t.s.data.methods[pm.ID] = clonePaymentMethod(*pm)
	return nil
}

func (t *memoryTx) SetPaymentMethodDefault(_ context.Context, id uuid.UUID, isDefault bool) error {
	pm, ok := t.s.data.methods[id]
	if !ok {
		return ErrNotFound
	}
	if isDefault && pm.IsActive && t.hasDefault(pm.UserID, id) {
		return ErrDuplicate
	}
	pm.IsDefault = isDefault
	t.s.data.methods[id] = pm
	return nil
}

func (t *memoryTx) DeactivatePaymentMethod(_ context.Context, id uuid.UUID) error {
	pm, ok := t.s.data.methods[id]
	if !ok {
		return ErrNotFound
	}
	pm.IsActive = false
	pm.IsDefault = false
	t.s.data.methods[id] = pm
	return nil
}

// hasDefault mirrors the partial unique index on (user_id) WHERE is_default AND is_active.
func (t *memoryTx) hasDefault(userID, except uuid.UUID) bool {
	for id, pm := range t.s.data.methods {
		if id != except && pm.UserID == userID && pm.IsActive && pm.IsDefault {
			return true
		}
	}
	return false
}

func (t *memoryTx) GetSubscription(_ context.Context, id uuid.UUID) (*Subscription, error) {
	sub, ok := t.s.data.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	sub = cloneSubscription(sub)
	return &sub, nil
}

func (t *memoryTx) GetActiveSubscription(_ context.Context, userID uuid.UUID) (*Subscription, error) {
	for _, sub := range t.s.data.subs {
		if sub.UserID == userID && sub.IsActive {
			sub = cloneSubscription(sub)
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) ListRollbackCandidates(_ context.Context, userID uuid.UUID, createdBefore, today time.Time) ([]Subscription, error) {
	today = Date(today)
	out := make([]Subscription, 0)
	for _, sub := range t.s.data.subs {
		if sub.UserID != userID || sub.IsActive || sub.ExpiredAt == nil {
			continue
		}
		if !sub.ExpiredAt.After(today) || !sub.CreatedAt.Before(createdBefore) {
			continue
		}
		out = append(out, cloneSubscription(sub))
	}
	slices.SortFunc(out, func(a, b Subscription) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (t *memoryTx) ListDueSubscriptions(_ context.Context, today time.Time, limit int) ([]Subscription, error) {
	today = Date(today)
	out := make([]Subscription, 0)
	for _, sub := range t.s.data.subs {
		if !sub.IsActive || sub.RenewTo == nil || sub.ExpiredAt == nil || sub.ExpiredAt.After(today) {
			continue
		}
		out = append(out, cloneSubscription(sub))
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.ExpiredAt.Compare(*b.ExpiredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryTx) ListLapsedSubscriptions(_ context.Context, today time.Time, limit int) ([]Subscription, error) {
	today = Date(today)
	out := make([]Subscription, 0)
	for _, sub := range t.s.data.subs {
		if !sub.IsActive || sub.RenewTo != nil || sub.ExpiredAt == nil || !sub.ExpiredAt.Before(today) {
			continue
		}
		out = append(out, cloneSubscription(sub))
	}
	slices.SortFunc(out, func(a, b Subscription) int { return a.ExpiredAt.Compare(*b.ExpiredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memoryTx) CreateSubscription(_ context.Context, sub *Subscription) error {
	if sub.IsActive && t.hasActiveSubscription(sub.UserID, uuid.Nil) {
		return ErrDuplicate
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = t.s.stamp()
	}
	t.s.data.subs[sub.ID] = cloneSubscription(*sub)
	return nil
}

func (t *memoryTx) UpdateSubscription(_ context.Context, sub *Subscription) error {
	if _, ok := t.s.data.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	if sub.IsActive && t.hasActiveSubscription(sub.UserID, sub.ID) {
		return ErrDuplicate
	}
	t.s.data.subs[sub.ID] = cloneSubscription(*sub)
	return nil
}

// hasActiveSubscription mirrors the partial unique index on (user_id) WHERE is_active.
func (t *memoryTx) hasActiveSubscription(userID, except uuid.UUID) bool {
	for id, sub := range t.s.data.subs {
		if id != except && sub.UserID == userID && sub.IsActive {
			return true
		}
	}
	return false
}

func (t *memoryTx) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	tr, ok := t.s.data.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	tr = cloneTransaction(tr)
	return &tr, nil
}

func (t *memoryTx) GetTransactionByProviderID(_ context.Context, providerID uuid.UUID, providerTransactionID string) (*Transaction, error) {
	for _, tr := range t.s.data.txs {
		if tr.ProviderID == providerID && tr.ProviderTransactionID != nil && *tr.ProviderTransactionID == providerTransactionID {
			tr = cloneTransaction(tr)
			return &tr, nil
		}
	}
	return nil, ErrNotFound
}

func (t *memoryTx) GetLatestDraft(_ context.Context, userID, planID, paymentMethodID uuid.UUID) (*Transaction, error) {
	var latest *Transaction
	for _, tr := range t.s.data.txs {
		if tr.UserID != userID || tr.PlanID != planID || tr.PaymentMethodID != paymentMethodID || tr.Status != StatusDraft {
			continue
		}
		if latest == nil || tr.CreatedAt.After(latest.CreatedAt) {
			c := cloneTransaction(tr)
			latest = &c
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (t *memoryTx) ListTransactions(_ context.Context, userID uuid.UUID) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for _, tr := range t.s.data.txs {
		if tr.UserID == userID {
			out = append(out, cloneTransaction(tr))
		}
	}
	slices.SortFunc(out, func(a, b Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (t *memoryTx) ListPlanTransactions(_ context.Context, userID, planID uuid.UUID, since time.Time) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for _, tr := range t.s.data.txs {
		if tr.UserID == userID && tr.PlanID == planID && !tr.CreatedAt.Before(since) {
			out = append(out, cloneTransaction(tr))
		}
	}
	slices.SortFunc(out, func(a, b Transaction) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (t *memoryTx) CreateTransaction(_ context.Context, tr *Transaction) error {
	if tr.ID == uuid.Nil {
		tr.ID = uuid.New()
	}
	if _, ok := t.s.data.txs[tr.ID]; ok {
		return ErrDuplicate
	}
	if tr.CreatedAt.IsZero() {
		tr.CreatedAt = t.s.stamp()
	}
	t.s.data.txs[tr.ID] = cloneTransaction(*tr)
	return nil
}

func (t *memoryTx) UpdateTransaction(_ context.Context, tr *Transaction) error {
	if _, ok := t.s.data.txs[tr.ID]; !ok {
		return ErrNotFound
	}
	t.s.data.txs[tr.ID] = cloneTransaction(*tr)
	return nil
}

func clonePaymentMethod(pm PaymentMethod) PaymentMethod {
	pm.Payload = maps.Clone(pm.Payload)
	return pm
}

func cloneSubscription(sub Subscription) Subscription {
	if sub.ExpiredAt != nil {
		v := *sub.ExpiredAt
		sub.ExpiredAt = &v
	}
	if sub.RenewTo != nil {
		v := *sub.RenewTo
		sub.RenewTo = &v
	}
	return sub
}

func cloneTransaction(tr Transaction) Transaction {
	if tr.ProviderTransactionID != nil {
		v := *tr.ProviderTransactionID
		tr.ProviderTransactionID = &v
	}
	return tr
}
