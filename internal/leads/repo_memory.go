package leads

import (
	"context"
	"sync"
)

// MemoryDirectory is a simple in-memory directory useful for tests.
// It is not intended for production use.
type MemoryDirectory struct {
	mu    sync.Mutex
	leads map[string]Lead
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{leads: map[string]Lead{}}
}

func (d *MemoryDirectory) Put(l Lead) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leads[l.ID] = l
}

func (d *MemoryDirectory) Get(ctx context.Context, id string) (Lead, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.leads[id]
	if !ok {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (d *MemoryDirectory) FindByPhone(ctx context.Context, phone string) (Lead, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range d.leads {
		for _, p := range l.Phones() {
			if SamePhone(p, phone) {
				return l, true, nil
			}
		}
	}
	return Lead{}, false, nil
}
