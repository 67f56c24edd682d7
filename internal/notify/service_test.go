package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/messaging"
)

type fakeSender struct {
	calls      int
	fail       bool
	ledgerDown bool
}

func (f *fakeSender) Send(ctx context.Context, leadID, phone, body string) (messaging.Message, error) {
	f.calls++
	if f.ledgerDown {
		return messaging.Message{}, errors.New("ledger unavailable")
	}
	m := messaging.Message{
		ID:        fmt.Sprintf("msg-%d", f.calls),
		Phone:     phone,
		Direction: messaging.DirectionOutbound,
		Body:      body,
	}
	if f.fail {
		m.Status = messaging.StatusFailed
		return m, errors.New("carrier rejected")
	}
	m.CarrierMessageID = fmt.Sprintf("SM-%d", f.calls)
	m.Status = messaging.StatusSending
	return m, nil
}

func newTestService(t *testing.T) (*Service, *fakeSender) {
	t.Helper()
	dir := leads.NewMemoryDirectory()
	dir.Put(leads.Lead{ID: "lead-1", Name: "Pat Doe", Phone: "+15551234567"})
	sender := &fakeSender{}
	svc := NewService(NewMemoryRepo(), sender, dir)
	svc.clock = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	return svc, sender
}

func TestNotifyAppointment(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	appt := Appointment{
		ID:          "appt-1",
		LeadID:      "lead-1",
		Address:     "12 Elm St, Springfield",
		ScheduledAt: time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC),
	}
	n, err := svc.NotifyAppointment(ctx, appt, Contact{ID: "u-7", Name: "Sam", Phone: "+15559990000"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	want := "New appointment: Pat Doe, +15551234567 on Mon Mar 9 at 2:30 PM. Address: 12 Elm St, Springfield."
	if n.Body != want {
		t.Fatalf("body mismatch:\n got %q\nwant %q", n.Body, want)
	}
	if n.Kind != KindAppointment || n.CarrierMessageID == "" || n.Status != messaging.StatusSending {
		t.Fatalf("unexpected notification: %+v", n)
	}
	if sender.calls != 1 {
		t.Fatalf("expected one send, got %d", sender.calls)
	}
}

func TestNotifyAppointment_ResendCreatesNewRecord(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	appt := Appointment{ID: "appt-1", LeadID: "lead-1", Address: "12 Elm St", ScheduledAt: time.Now()}
	target := Contact{ID: "u-7", Phone: "+15559990000"}

	first, err := svc.NotifyAppointment(ctx, appt, target)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.NotifyAppointment(ctx, appt, target)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("resend must create a new record")
	}
	if sender.calls != 2 {
		t.Fatalf("expected two sends, got %d", sender.calls)
	}

	history, err := svc.History(ctx, "appt-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected both attempts in history, got %d", len(history))
	}
}

func TestNotifyVendorDispatch_SendFailureRecorded(t *testing.T) {
	svc, sender := newTestService(t)
	sender.fail = true
	ctx := context.Background()

	n, err := svc.NotifyVendorDispatch(ctx, "disp-1", "lead-1", Contact{ID: "v-1", Name: "Acme Roofing", Phone: "+15557770000"})
	if err == nil {
		t.Fatalf("expected send error")
	}
	if n.Status != messaging.StatusFailed {
		t.Fatalf("expected failed status, got %q", n.Status)
	}

	history, _ := svc.History(ctx, "disp-1")
	if len(history) != 1 {
		t.Fatalf("failed attempt must still be recorded, got %d", len(history))
	}
}

func TestNotifyVendorDispatch_LedgerFailureLeavesNoRecord(t *testing.T) {
	svc, sender := newTestService(t)
	sender.ledgerDown = true
	ctx := context.Background()

	_, err := svc.NotifyVendorDispatch(ctx, "disp-2", "lead-1", Contact{ID: "v-1", Phone: "+15557770000"})
	if err == nil {
		t.Fatalf("expected send error")
	}

	// Nothing reached the ledger, so a blank-status record would be an orphan.
	history, _ := svc.History(ctx, "disp-2")
	if len(history) != 0 {
		t.Fatalf("expected no record when the ledger write failed, got %d", len(history))
	}
}

func TestResend(t *testing.T) {
	svc, sender := newTestService(t)
	ctx := context.Background()

	appt := Appointment{ID: "appt-1", LeadID: "lead-1", Address: "12 Elm St", ScheduledAt: time.Now()}
	orig, err := svc.NotifyAppointment(ctx, appt, Contact{ID: "u-7", Phone: "+15559990000"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	again, err := svc.Resend(ctx, orig.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if again.ID == orig.ID || again.Body != orig.Body || again.TargetPhone != orig.TargetPhone {
		t.Fatalf("resend must duplicate content under a new id: %+v vs %+v", again, orig)
	}
	if sender.calls != 2 {
		t.Fatalf("expected two sends, got %d", sender.calls)
	}

	if _, err := svc.Resend(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateDelivery(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	appt := Appointment{ID: "appt-1", LeadID: "lead-1", ScheduledAt: time.Now()}
	n, err := svc.NotifyAppointment(ctx, appt, Contact{ID: "u-7", Phone: "+15559990000"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}

	updated, applied, err := svc.UpdateDelivery(ctx, n.CarrierMessageID, messaging.StatusDelivered)
	if err != nil || !applied {
		t.Fatalf("update: applied=%v err=%v", applied, err)
	}
	if updated.Status != messaging.StatusDelivered {
		t.Fatalf("expected delivered, got %q", updated.Status)
	}

	// Late "sent" after delivered must not regress.
	_, applied, err = svc.UpdateDelivery(ctx, n.CarrierMessageID, messaging.StatusSent)
	if err != nil || applied {
		t.Fatalf("stale update must not apply: applied=%v err=%v", applied, err)
	}

	// Delivery callbacks for ordinary conversation SMS are not ours.
	_, applied, err = svc.UpdateDelivery(ctx, "SM-unknown", messaging.StatusDelivered)
	if err != nil || applied {
		t.Fatalf("unknown carrier id: applied=%v err=%v", applied, err)
	}
}
