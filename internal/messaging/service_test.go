package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/outbound"
)

func okChannel() outbound.Channel {
	var n atomic.Int64
	return outbound.ChannelFunc(func(ctx context.Context, to, body string) (string, error) {
		return fmt.Sprintf("SM%d", n.Add(1)), nil
	})
}

func newTestService(t *testing.T, ch outbound.Channel) (*Service, *MemoryRepo, *leads.MemoryDirectory) {
	t.Helper()
	repo := NewMemoryRepo()
	dir := leads.NewMemoryDirectory()
	dir.Put(leads.Lead{ID: "l1", Name: "Pat", Phone: "+15551234567"})
	svc := NewService(repo, dir, ch)
	var seq atomic.Int64
	base := time.Unix(1700000000, 0).UTC()
	svc.clock = func() time.Time { return base.Add(time.Duration(seq.Add(1)) * time.Millisecond) }
	return svc, repo, dir
}

func TestSend_PersistsSendingMessage(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())

	m, err := svc.Send(context.Background(), "l1", "", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Status != StatusSending || m.Direction != DirectionOutbound {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.CarrierMessageID == "" {
		t.Fatalf("expected carrier message id")
	}
	if m.Phone != "+15551234567" {
		t.Fatalf("expected lead primary phone, got %q", m.Phone)
	}
}

func TestSend_FailureIsSurfacedAndPersisted(t *testing.T) {
	failing := outbound.ChannelFunc(func(ctx context.Context, to, body string) (string, error) {
		return "", fmt.Errorf("%w: carrier outage", outbound.ErrSendFailed)
	})
	svc, _, _ := newTestService(t, failing)

	m, err := svc.Send(context.Background(), "l1", "", "hello")
	if !errors.Is(err, outbound.ErrSendFailed) {
		t.Fatalf("expected ErrSendFailed, got %v", err)
	}
	if m.Status != StatusFailed {
		t.Fatalf("expected failed status, got %s", m.Status)
	}

	// The failed send stays visible in history.
	msgs, err := svc.List(context.Background(), "l1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Status != StatusFailed {
		t.Fatalf("expected one failed message in history, got %+v", msgs)
	}
}

func TestReceive_DeduplicatesByCarrierMessageID(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())
	ctx := context.Background()

	a, err := svc.Receive(ctx, "+15551234567", "hi there", "SMIN1")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	b, err := svc.Receive(ctx, "+15551234567", "hi there", "SMIN1")
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("redelivery must return the original message")
	}

	msgs, _ := svc.List(ctx, "l1")
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one message, got %d", len(msgs))
	}
}

func TestReceive_UnmatchedNumberStillRecorded(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())

	m, err := svc.Receive(context.Background(), "+19998887777", "who dis", "SMIN2")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if m.LeadID != "" {
		t.Fatalf("expected no lead match")
	}
	msgs, err := svc.ListByPhone(context.Background(), "+19998887777")
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected message retrievable by phone, got %v %v", msgs, err)
	}
}

func TestList_ChronologicalAcrossDirections(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())
	ctx := context.Background()

	if _, err := svc.Send(ctx, "l1", "", "first"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.Receive(ctx, "+15551234567", "second", "SMIN3"); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := svc.Send(ctx, "l1", "", "third"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgs, err := svc.List(ctx, "l1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("ledger out of order at %d", i)
		}
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" || msgs[2].Body != "third" {
		t.Fatalf("unexpected order: %q %q %q", msgs[0].Body, msgs[1].Body, msgs[2].Body)
	}
}

func TestConcurrentSends_TotalOrderPerLead(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			if _, err := svc.Send(ctx, "l1", "", fmt.Sprintf("msg-%d", i)); err != nil {
				t.Errorf("send %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	msgs, err := svc.List(ctx, "l1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages, got %d", n, len(msgs))
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Fatalf("creation times not monotonic at %d", i)
		}
	}
}

func TestUpdateDelivery_MonotonicAndIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t, okChannel())
	ctx := context.Background()

	m, err := svc.Send(ctx, "l1", "", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, applied, err := svc.UpdateDelivery(ctx, m.CarrierMessageID, "sent"); err != nil || !applied {
		t.Fatalf("sent update: applied=%v err=%v", applied, err)
	}
	if _, applied, err := svc.UpdateDelivery(ctx, m.CarrierMessageID, "delivered"); err != nil || !applied {
		t.Fatalf("delivered update: applied=%v err=%v", applied, err)
	}

	// Late/replayed callbacks are no-ops.
	got, applied, err := svc.UpdateDelivery(ctx, m.CarrierMessageID, "sent")
	if err != nil {
		t.Fatalf("late sent: %v", err)
	}
	if applied || got.Status != StatusDelivered {
		t.Fatalf("late callback must not demote, got applied=%v status=%s", applied, got.Status)
	}

	if _, _, err := svc.UpdateDelivery(ctx, "SM-unknown", "delivered"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
