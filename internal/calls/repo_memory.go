package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
// It enforces carrier call id uniqueness the way the Postgres schema does.
type MemoryRepo struct {
	mu        sync.Mutex
	byID      map[string]Call
	byCarrier map[string]string // carrier_call_id -> id
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Call{}, byCarrier: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCarrier[c.CarrierCallID]; ok {
		return ErrAlreadyExists
	}
	r.byID[c.ID] = c
	r.byCarrier[c.CarrierCallID] = c.ID
	return nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[c.ID]; !ok {
		return ErrNotFound
	}
	r.byID[c.ID] = c
	return nil
}

func (r *MemoryRepo) GetByCarrierCallID(ctx context.Context, carrierCallID string) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCarrier[carrierCallID]
	if !ok {
		return Call{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return Call{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListByLead(ctx context.Context, leadID string) ([]Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0)
	for _, c := range r.byID {
		if c.LeadID == leadID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
