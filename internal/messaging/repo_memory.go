package messaging

import (
	"context"
	"sort"
	"sync"

	"calldesk-platform/internal/leads"
)

// MemoryRepo is a simple in-memory ledger useful for tests.
// It enforces carrier message id uniqueness the way the Postgres schema does.
type MemoryRepo struct {
	mu        sync.Mutex
	byID      map[string]Message
	byCarrier map[string]string
	order     []string // insertion order of ids
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Message{}, byCarrier: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.CarrierMessageID != "" {
		if _, ok := r.byCarrier[m.CarrierMessageID]; ok {
			return ErrAlreadyExists
		}
		r.byCarrier[m.CarrierMessageID] = m.ID
	}
	r.byID[m.ID] = m
	r.order = append(r.order, m.ID)
	return nil
}

func (r *MemoryRepo) GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Message, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCarrier[carrierMessageID]
	if !ok {
		return Message{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepo) UpdateStatus(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[m.ID]; !ok {
		return ErrNotFound
	}
	r.byID[m.ID] = m
	return nil
}

func (r *MemoryRepo) ListByLead(ctx context.Context, leadID string) ([]Message, error) {
	return r.list(func(m Message) bool { return m.LeadID == leadID })
}

func (r *MemoryRepo) ListByPhone(ctx context.Context, phone string) ([]Message, error) {
	return r.list(func(m Message) bool { return leads.SamePhone(m.Phone, phone) })
}

func (r *MemoryRepo) list(match func(Message) bool) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, 0)
	for _, id := range r.order {
		if m := r.byID[id]; match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
