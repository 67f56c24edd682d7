package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogWebhookRejected records a carrier webhook that failed signature
// verification. ip should be the resolved client IP, metadata the request
// path and offending signature header.
func (s *Service) LogWebhookRejected(ctx context.Context, ip, message, metadata string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeWebhookRejected,
		IPAddress: ip,
		Message:   message,
		Metadata:  metadata,
	})
}

// LogManualResend records an operator re-sending a dispatch notification.
func (s *Service) LogManualResend(ctx context.Context, actorUserID, actorRole, ip, notificationID, metadata string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeManualResend,
		ActorUserID:    actorUserID,
		ActorRole:      actorRole,
		IPAddress:      ip,
		NotificationID: notificationID,
		Message:        "notification re-sent",
		Metadata:       metadata,
	})
}

// LogTokenIssued records a signaling token grant.
func (s *Service) LogTokenIssued(ctx context.Context, actorUserID, actorRole, ip string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeTokenIssued,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		Message:     "signaling token issued",
	})
}
