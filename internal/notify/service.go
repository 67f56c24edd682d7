package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/messaging"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("notify: invalid input")

// Sender is the outbound side of the message ledger. Notification sends go
// through it so every system-generated SMS is logged and status-tracked the
// same way agent SMS are.
type Sender interface {
	Send(ctx context.Context, leadID, phone, body string) (messaging.Message, error)
}

// Service renders and sends dispatch notifications.
//
// Every call creates a new record and sends, including repeat calls with the
// same correlation id: an operator hitting resend wants a second SMS, and the
// history must show both attempts.
type Service struct {
	repo   Repository
	sender Sender
	dir    leads.Directory
	clock  func() time.Time
}

func NewService(repo Repository, sender Sender, dir leads.Directory) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		dir:    dir,
		clock:  time.Now,
	}
}

// NotifyAppointment texts a salesperson about a newly booked appointment.
func (s *Service) NotifyAppointment(ctx context.Context, appt Appointment, salesperson Contact) (Notification, error) {
	if appt.ID == "" || salesperson.Phone == "" {
		return Notification{}, ErrInvalidInput
	}
	body, err := s.appointmentBody(ctx, appt)
	if err != nil {
		return Notification{}, err
	}
	return s.deliver(ctx, KindAppointment, appt.ID, salesperson.Phone, body)
}

// NotifyVendorDispatch texts a vendor that a lead has been routed to them.
func (s *Service) NotifyVendorDispatch(ctx context.Context, dispatchID, leadID string, vendor Contact) (Notification, error) {
	if dispatchID == "" || vendor.Phone == "" {
		return Notification{}, ErrInvalidInput
	}
	lead, err := s.dir.Get(ctx, leadID)
	if err != nil {
		return Notification{}, err
	}
	body := fmt.Sprintf("New lead dispatched to you: %s, %s. Please make contact within 1 business hour.",
		lead.Name, lead.Phone)
	return s.deliver(ctx, KindVendorDispatch, dispatchID, vendor.Phone, body)
}

func (s *Service) appointmentBody(ctx context.Context, appt Appointment) (string, error) {
	lead, err := s.dir.Get(ctx, appt.LeadID)
	if err != nil {
		return "", err
	}
	when := appt.ScheduledAt.Format("Mon Jan 2 at 3:04 PM")
	return fmt.Sprintf("New appointment: %s, %s on %s. Address: %s.",
		lead.Name, lead.Phone, when, appt.Address), nil
}

// deliver sends the SMS through the ledger and records the notification.
// A carrier rejection still produces a record (status failed, backed by a
// ledger row) and surfaces the error so the caller can offer a resend. A
// failure before the ledger write leaves nothing to record.
func (s *Service) deliver(ctx context.Context, kind Kind, correlationID, phone, body string) (Notification, error) {
	m, sendErr := s.sender.Send(ctx, "", phone, body)
	if sendErr != nil && m.ID == "" {
		return Notification{}, sendErr
	}

	now := s.clock().UTC()
	n := Notification{
		ID:               uuid.NewString(),
		Kind:             kind,
		CorrelationID:    correlationID,
		TargetPhone:      phone,
		Body:             body,
		MessageID:        m.ID,
		CarrierMessageID: m.CarrierMessageID,
		Status:           m.Status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}
	return n, sendErr
}

// Resend re-sends a previously rendered notification verbatim. A new record
// is created; the original keeps its own delivery history.
func (s *Service) Resend(ctx context.Context, notificationID string) (Notification, error) {
	orig, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return Notification{}, err
	}
	return s.deliver(ctx, orig.Kind, orig.CorrelationID, orig.TargetPhone, orig.Body)
}

// UpdateDelivery mirrors a carrier delivery callback onto the notification
// record. Unknown carrier ids are not an error: most delivery callbacks
// belong to agent conversation SMS, not notifications.
func (s *Service) UpdateDelivery(ctx context.Context, carrierMessageID string, status messaging.DeliveryStatus) (Notification, bool, error) {
	n, ok, err := s.repo.GetByCarrierMessageID(ctx, carrierMessageID)
	if err != nil || !ok {
		return Notification{}, false, err
	}
	if !messaging.AdvancesDelivery(n.Status, status) {
		return n, false, nil
	}
	n.Status = status
	n.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, n); err != nil {
		return Notification{}, false, err
	}
	return n, true, nil
}

// History lists every send attempt for a business event, newest last.
func (s *Service) History(ctx context.Context, correlationID string) ([]Notification, error) {
	return s.repo.ListByCorrelation(ctx, correlationID)
}
