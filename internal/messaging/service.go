package messaging

import (
	"context"
	"errors"
	"time"

	"calldesk-platform/internal/leads"
	"calldesk-platform/internal/outbound"
	"calldesk-platform/pkg/utils"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("messaging: invalid input")

// Service is the conversation ledger: the only writer of Message rows.
//
// Ordering: creation timestamps are assigned inside a per-conversation
// critical section, so the per-lead sequence is totally ordered even under
// concurrent sends. The carrier network call happens before the lock is
// taken — sends never block other conversations, and no lock is held across
// the network.
type Service struct {
	repo  Repository
	dir   leads.Directory
	ch    outbound.Channel
	locks *utils.KeyedMutex
	clock func() time.Time
}

func NewService(repo Repository, dir leads.Directory, ch outbound.Channel) *Service {
	return &Service{
		repo:  repo,
		dir:   dir,
		ch:    ch,
		locks: utils.NewKeyedMutex(),
		clock: time.Now,
	}
}

// Send submits an outbound SMS for a lead and appends it to the ledger.
//
// On carrier rejection the error is surfaced AND the message is persisted
// with a failed status, so the conversation history shows the failure and an
// operator can resend.
func (s *Service) Send(ctx context.Context, leadID, phone, body string) (Message, error) {
	if body == "" {
		return Message{}, ErrInvalidInput
	}
	if phone == "" {
		if leadID == "" {
			return Message{}, ErrInvalidInput
		}
		l, err := s.dir.Get(ctx, leadID)
		if err != nil {
			return Message{}, err
		}
		phone = l.Phone
	}
	if phone == "" {
		return Message{}, ErrInvalidInput
	}

	carrierID, sendErr := s.ch.SendSMS(ctx, phone, body)

	m := Message{
		ID:               uuid.NewString(),
		LeadID:           leadID,
		Phone:            phone,
		Direction:        DirectionOutbound,
		Body:             body,
		CarrierMessageID: carrierID,
		Status:           StatusSending,
	}
	if sendErr != nil {
		m.Status = StatusFailed
	}

	unlock := s.locks.Lock(s.conversationKey(leadID, phone))
	m.CreatedAt = s.clock().UTC()
	m.UpdatedAt = m.CreatedAt
	err := s.repo.Create(ctx, m)
	unlock()

	if err != nil {
		return Message{}, err
	}
	if sendErr != nil {
		return m, sendErr
	}
	return m, nil
}

// Receive appends an inbound SMS delivered by the webhook router.
// Redelivery of the same carrier message id returns the original row.
func (s *Service) Receive(ctx context.Context, phone, body, carrierMessageID string) (Message, error) {
	if phone == "" || carrierMessageID == "" {
		return Message{}, ErrInvalidInput
	}

	if existing, ok, err := s.repo.GetByCarrierMessageID(ctx, carrierMessageID); err != nil {
		return Message{}, err
	} else if ok {
		return existing, nil
	}

	leadID := ""
	if s.dir != nil {
		if l, ok, err := s.dir.FindByPhone(ctx, phone); err == nil && ok {
			leadID = l.ID
		}
	}

	m := Message{
		ID:               uuid.NewString(),
		LeadID:           leadID,
		Phone:            phone,
		Direction:        DirectionInbound,
		Body:             body,
		CarrierMessageID: carrierMessageID,
		Status:           StatusReceived,
	}

	unlock := s.locks.Lock(s.conversationKey(leadID, phone))
	m.CreatedAt = s.clock().UTC()
	m.UpdatedAt = m.CreatedAt
	err := s.repo.Create(ctx, m)
	unlock()

	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Lost the race against a concurrent delivery of the same event.
			existing, _, gerr := s.repo.GetByCarrierMessageID(ctx, carrierMessageID)
			if gerr != nil {
				return Message{}, gerr
			}
			return existing, nil
		}
		return Message{}, err
	}
	return m, nil
}

// UpdateDelivery applies a carrier delivery callback by carrier message id.
// Updates are monotonic; replays and late low-rank callbacks are no-ops.
func (s *Service) UpdateDelivery(ctx context.Context, carrierMessageID, carrierStatus string) (Message, bool, error) {
	if carrierMessageID == "" {
		return Message{}, false, ErrInvalidInput
	}
	target, ok := DeliveryStatusFromCarrier(carrierStatus)
	if !ok {
		return Message{}, false, nil
	}

	m, found, err := s.repo.GetByCarrierMessageID(ctx, carrierMessageID)
	if err != nil {
		return Message{}, false, err
	}
	if !found {
		return Message{}, false, ErrNotFound
	}
	if !AdvancesDelivery(m.Status, target) {
		return m, false, nil
	}

	m.Status = target
	m.UpdatedAt = s.clock().UTC()
	if err := s.repo.UpdateStatus(ctx, m); err != nil {
		return Message{}, false, err
	}
	return m, true, nil
}

// List returns the lead's conversation in chronological order.
func (s *Service) List(ctx context.Context, leadID string) ([]Message, error) {
	if leadID == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByLead(ctx, leadID)
}

// ListByPhone returns the conversation for a number, matched or not.
func (s *Service) ListByPhone(ctx context.Context, phone string) ([]Message, error) {
	if phone == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListByPhone(ctx, phone)
}

func (s *Service) conversationKey(leadID, phone string) string {
	if leadID != "" {
		return "lead:" + leadID
	}
	return "phone:" + leads.NormalizePhone(phone)
}

// DeliveryStatusFromCarrier maps a carrier callback status to the ledger's
// delivery status. Unknown values are ignored rather than failed.
func DeliveryStatusFromCarrier(status string) (DeliveryStatus, bool) {
	switch status {
	case "queued", "accepted", "sending":
		return StatusSending, true
	case "sent":
		return StatusSent, true
	case "delivered":
		return StatusDelivered, true
	case "undelivered", "failed":
		return StatusFailed, true
	default:
		return "", false
	}
}
