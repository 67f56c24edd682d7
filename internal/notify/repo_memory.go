package notify

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
type MemoryRepo struct {
	mu        sync.Mutex
	byID      map[string]Notification
	byCarrier map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Notification{}, byCarrier: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[n.ID] = n
	if n.CarrierMessageID != "" {
		r.byCarrier[n.CarrierMessageID] = n.ID
	}
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Notification, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byCarrier[carrierMessageID]
	if !ok {
		return Notification{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepo) Update(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[n.ID]; !ok {
		return ErrNotFound
	}
	r.byID[n.ID] = n
	if n.CarrierMessageID != "" {
		r.byCarrier[n.CarrierMessageID] = n.ID
	}
	return nil
}

func (r *MemoryRepo) ListByCorrelation(ctx context.Context, correlationID string) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, 0)
	for _, n := range r.byID {
		if n.CorrelationID == correlationID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
