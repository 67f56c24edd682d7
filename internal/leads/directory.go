package leads

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("leads: not found")

// Directory is the read-only lookup surface consumed by the webhook router,
// the conversation ledger, and the dispatch notifier.
//
// FindByPhone returns ok=false for unknown numbers; callers treat that as the
// "unmatched caller" path, never as a failure.
type Directory interface {
	Get(ctx context.Context, id string) (Lead, error)
	FindByPhone(ctx context.Context, phone string) (Lead, bool, error)
}
