package alerts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is a simple in-memory repository useful for tests.
type MemoryRepo struct {
	mu        sync.Mutex
	byID      map[string]Alert
	byMessage map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[string]Alert{}, byMessage: map[string]string{}}
}

func (r *MemoryRepo) Create(ctx context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byMessage[a.MessageID]; ok {
		return ErrAlreadyExists
	}
	r.byID[a.ID] = a
	r.byMessage[a.MessageID] = a.ID
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) GetByMessageID(ctx context.Context, messageID string) (Alert, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byMessage[messageID]
	if !ok {
		return Alert{}, false, nil
	}
	return r.byID[id], true, nil
}

func (r *MemoryRepo) Update(ctx context.Context, a Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[a.ID]; !ok {
		return ErrNotFound
	}
	r.byID[a.ID] = a
	return nil
}

func (r *MemoryRepo) ListOpen(ctx context.Context) ([]Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, 0)
	for _, a := range r.byID {
		if a.Status == StatusUnread {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
