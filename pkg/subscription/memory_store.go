package subscription

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory for tests and local development.
// Transactions are serialized and rolled back by restoring a snapshot; writes
// made outside WithinTx while a transaction is running are lost on rollback.
type MemoryStore struct {
	mu      sync.RWMutex
	txMu    sync.Mutex
	records map[uuid.UUID]*Record
	bySubID map[string]uuid.UUID
	now     func() time.Time
}

type memoryTxKey struct{}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Record),
		bySubID: make(map[string]uuid.UUID),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.UserID]; exists {
		return ErrRecordExists
	}
	if rec.ProviderSubscriptionID != "" {
		if _, taken := s.bySubID[rec.ProviderSubscriptionID]; taken {
			return ErrRecordExists
		}
	}

	// Clone to prevent external modifications
	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.records[cp.UserID] = &cp
	s.index(&cp)
	return nil
}

// FindByUserID implements Store.
func (s *MemoryStore) FindByUserID(ctx context.Context, userID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[userID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

// FindByProviderSubscriptionID implements Store.
func (s *MemoryStore) FindByProviderSubscriptionID(ctx context.Context, subscriptionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.bySubID[subscriptionID]
	if !ok || subscriptionID == "" {
		return nil, ErrRecordNotFound
	}
	cp := *s.records[userID]
	return &cp, nil
}

// SetProviderCustomer implements Store.
func (s *MemoryStore) SetProviderCustomer(ctx context.Context, userID uuid.UUID, customerID string) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.ProviderCustomerID != "" {
			return false
		}
		r.ProviderCustomerID = customerID
		return true
	})
}

// Activate implements Store.
func (s *MemoryStore) Activate(ctx context.Context, userID uuid.UUID, b Billing, at time.Time) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.Status == StatusActive {
			return false
		}
		r.Status = StatusActive
		applyBilling(r, b)
		r.UpgradedAt = &at
		return true
	})
}

// Renew implements Store.
func (s *MemoryStore) Renew(ctx context.Context, userID uuid.UUID, b Billing) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.Status != StatusActive || r.ProviderSubscriptionID != b.ProviderSubscriptionID || !b.Differs(r) {
			return false
		}
		applyBilling(r, b)
		return true
	})
}

// SwitchPlan implements Store.
func (s *MemoryStore) SwitchPlan(ctx context.Context, userID uuid.UUID, b Billing) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.Status != StatusActive || r.ProviderSubscriptionID != b.ProviderSubscriptionID || !b.PlanDiffers(r) {
			return false
		}
		applyBilling(r, b)
		return true
	})
}

// MarkPaymentFailed implements Store.
func (s *MemoryStore) MarkPaymentFailed(ctx context.Context, userID uuid.UUID, subscriptionID string) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.Status == StatusPaymentFailed || r.Status.Terminal() || r.ProviderSubscriptionID != subscriptionID {
			return false
		}
		r.Status = StatusPaymentFailed
		r.Plan = PlanNone
		return true
	})
}

// Terminate implements Store.
func (s *MemoryStore) Terminate(ctx context.Context, userID uuid.UUID, subscriptionID string, status Status, canceledAt *time.Time) (bool, error) {
	return s.update(userID, func(r *Record) bool {
		if r.Status == status || r.ProviderSubscriptionID != subscriptionID {
			return false
		}
		r.Status = status
		r.Plan = PlanNone
		if canceledAt != nil {
			at := *canceledAt
			r.CanceledAt = &at
		}
		return true
	})
}

// WithinTx implements Store. Nested calls join the outer transaction.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	records := make(map[uuid.UUID]*Record, len(s.records))
	for id, rec := range s.records {
		cp := *rec
		records[id] = &cp
	}
	bySubID := maps.Clone(s.bySubID)
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		s.mu.Lock()
		s.records = records
		s.bySubID = bySubID
		s.mu.Unlock()
		return err
	}
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) update(userID uuid.UUID, mutate func(r *Record) bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[userID]
	if !ok {
		return false, ErrRecordNotFound
	}

	cp := *rec
	if !mutate(&cp) {
		return false, nil
	}
	if cp.ProviderSubscriptionID != "" && cp.ProviderSubscriptionID != rec.ProviderSubscriptionID {
		if owner, taken := s.bySubID[cp.ProviderSubscriptionID]; taken && owner != userID {
			return false, ErrRecordExists
		}
		delete(s.bySubID, rec.ProviderSubscriptionID)
	}
	cp.UpdatedAt = s.now()
	s.records[userID] = &cp
	s.index(&cp)
	return true, nil
}

func (s *MemoryStore) index(rec *Record) {
	if rec.ProviderSubscriptionID != "" {
		s.bySubID[rec.ProviderSubscriptionID] = rec.UserID
	}
}

func applyBilling(r *Record, b Billing) {
	r.Plan = b.Plan
	r.ProviderSubscriptionID = b.ProviderSubscriptionID
	r.ProviderPriceID = b.ProviderPriceID
	r.CurrentPeriodStart = timePtr(b.CurrentPeriodStart)
	r.CurrentPeriodEnd = timePtr(b.CurrentPeriodEnd)
}
