package outbound

import (
	"context"
	"errors"
)

// Channel is the single outbound SMS path shared by the conversation ledger
// and the dispatch notifier, so every message — human or system generated —
// gets the same persistence and status-callback treatment.
//
// Implementations must be safe for concurrent use and must not be called while
// holding per-lead or per-call locks; sends block on the carrier network.
type Channel interface {
	// SendSMS submits a message and returns the carrier message id used to
	// correlate later delivery callbacks.
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// ErrSendFailed wraps any carrier rejection or exhausted retry. Callers
// surface it; the owning record is still persisted with a failed status.
var ErrSendFailed = errors.New("outbound: send failed")

// ChannelFunc adapts a function to the Channel interface (test doubles).
type ChannelFunc func(ctx context.Context, to, body string) (string, error)

func (f ChannelFunc) SendSMS(ctx context.Context, to, body string) (string, error) {
	return f(ctx, to, body)
}
