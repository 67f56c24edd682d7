package alerts

import (
	"context"
	"errors"
	"time"

	"calldesk-platform/internal/messaging"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("alerts: invalid input")

// ConversationReader is the slice of the message ledger the qualification
// policy needs.
type ConversationReader interface {
	ListByPhone(ctx context.Context, phone string) ([]messaging.Message, error)
}

// Service decides when an inbound SMS deserves a follow-up alert.
//
// Policy: an inbound message qualifies unless the thread had activity within
// replyWindow before it — a quick back-and-forth is a reply, not new work.
// The window is deployment configuration, not a business rule baked in here.
//
// Guarantee: exactly one alert per qualifying message, never duplicated, even
// when the carrier redelivers the webhook that carried the message.
type Service struct {
	repo        Repository
	conv        ConversationReader
	replyWindow time.Duration
	clock       func() time.Time
}

func NewService(repo Repository, conv ConversationReader, replyWindow time.Duration) *Service {
	return &Service{
		repo:        repo,
		conv:        conv,
		replyWindow: replyWindow,
		clock:       time.Now,
	}
}

// CreateForInbound raises an alert for an inbound message if it qualifies.
// The bool result reports whether an alert exists for the message after the
// call (created now or previously).
func (s *Service) CreateForInbound(ctx context.Context, m messaging.Message) (Alert, bool, error) {
	if m.ID == "" || m.Phone == "" || m.Direction != messaging.DirectionInbound {
		return Alert{}, false, ErrInvalidInput
	}

	if existing, ok, err := s.repo.GetByMessageID(ctx, m.ID); err != nil {
		return Alert{}, false, err
	} else if ok {
		return existing, true, nil
	}

	qualifies, err := s.qualifies(ctx, m)
	if err != nil {
		return Alert{}, false, err
	}
	if !qualifies {
		return Alert{}, false, nil
	}

	now := s.clock().UTC()
	a := Alert{
		ID:        uuid.NewString(),
		LeadID:    m.LeadID,
		Phone:     m.Phone,
		MessageID: m.ID,
		Status:    StatusUnread,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			existing, _, gerr := s.repo.GetByMessageID(ctx, m.ID)
			if gerr != nil {
				return Alert{}, false, gerr
			}
			return existing, true, nil
		}
		return Alert{}, false, err
	}
	return a, true, nil
}

func (s *Service) qualifies(ctx context.Context, m messaging.Message) (bool, error) {
	history, err := s.conv.ListByPhone(ctx, m.Phone)
	if err != nil {
		return false, err
	}
	cutoff := m.CreatedAt.Add(-s.replyWindow)
	for _, prev := range history {
		if prev.ID == m.ID {
			continue
		}
		if prev.CreatedAt.After(m.CreatedAt) {
			continue
		}
		if prev.CreatedAt.After(cutoff) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) (Alert, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Alert{}, err
	}
	if a.Status == StatusRead {
		return a, nil
	}
	a.Status = StatusRead
	a.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return Alert{}, err
	}
	return a, nil
}

// Assign hands the alert to an agent with an optional follow-up time.
func (s *Service) Assign(ctx context.Context, id, userID string, followUpAt *time.Time) (Alert, error) {
	if userID == "" {
		return Alert{}, ErrInvalidInput
	}
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return Alert{}, err
	}
	a.AssigneeID = userID
	a.FollowUpAt = followUpAt
	a.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, a); err != nil {
		return Alert{}, err
	}
	return a, nil
}

func (s *Service) ListOpen(ctx context.Context) ([]Alert, error) {
	return s.repo.ListOpen(ctx)
}
