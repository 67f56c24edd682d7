package calls

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"calldesk-platform/internal/leads"
	"calldesk-platform/pkg/utils"

	"github.com/google/uuid"
)

// Service owns every Call state transition.
//
// Concurrency model: a per-carrier-call-id critical section serializes events
// for the same session; different sessions proceed in parallel. Inside the
// critical section the monotonic-rank rule (models.go) resolves duplicate and
// out-of-order carrier deliveries, so replaying a webhook N times yields one
// row and one final duration.
type Service struct {
	repo  Repository
	dir   leads.Directory
	locks *utils.KeyedMutex
	clock func() time.Time
}

func NewService(repo Repository, dir leads.Directory) *Service {
	return &Service{
		repo:  repo,
		dir:   dir,
		locks: utils.NewKeyedMutex(),
		clock: time.Now,
	}
}

var ErrInvalidEvent = errors.New("calls: invalid event")

// OutboundEvent records an agent placing a call through the browser softphone.
type OutboundEvent struct {
	CarrierCallID string
	UserID        string
	From          string
	To            string
}

// StatusEvent is a carrier status callback normalized by the webhook router.
type StatusEvent struct {
	CarrierCallID string
	// CarrierStatus is the raw carrier value: queued, initiated, ringing,
	// in-progress, completed, busy, failed, no-answer, canceled.
	CarrierStatus string
	Direction     Direction
	From          string
	To            string

	// DurationSeconds is only meaningful on completed events.
	DurationSeconds int
	RecordingURL    string
}

// StartOutbound creates a Call in initiating for an agent-placed call.
// Replays of the same carrier call id return the existing record.
func (s *Service) StartOutbound(ctx context.Context, ev OutboundEvent) (Call, error) {
	if ev.CarrierCallID == "" || ev.UserID == "" || ev.To == "" {
		return Call{}, ErrInvalidEvent
	}

	unlock := s.locks.Lock(ev.CarrierCallID)
	defer unlock()

	if existing, ok, err := s.repo.GetByCarrierCallID(ctx, ev.CarrierCallID); err != nil {
		return Call{}, err
	} else if ok {
		return existing, nil
	}

	now := s.clock().UTC()
	c := Call{
		ID:            uuid.NewString(),
		CarrierCallID: ev.CarrierCallID,
		Direction:     DirectionOutbound,
		From:          ev.From,
		To:            ev.To,
		UserID:        ev.UserID,
		Status:        CallStatusInitiating,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.LeadID = s.resolveLead(ctx, ev.To)

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			existing, _, gerr := s.repo.GetByCarrierCallID(ctx, ev.CarrierCallID)
			if gerr != nil {
				return Call{}, gerr
			}
			return existing, nil
		}
		return Call{}, err
	}
	return c, nil
}

// ApplyStatus advances the call state machine for a carrier status event.
// The bool result reports whether the event changed anything; duplicates and
// regressions return (call, false, nil) so the webhook router can acknowledge
// them as successes.
func (s *Service) ApplyStatus(ctx context.Context, ev StatusEvent) (Call, bool, error) {
	if ev.CarrierCallID == "" || ev.CarrierStatus == "" {
		return Call{}, false, ErrInvalidEvent
	}

	unlock := s.locks.Lock(ev.CarrierCallID)
	defer unlock()

	c, ok, err := s.repo.GetByCarrierCallID(ctx, ev.CarrierCallID)
	if err != nil {
		return Call{}, false, err
	}
	if !ok {
		c, err = s.createFromStatus(ctx, ev)
		if err != nil {
			return Call{}, false, err
		}
		// An inbound session is born at ringing; nothing further to apply for
		// the event that created it.
		if target, terminal := targetStatus(ev, c.Status); !terminal && target == c.Status {
			return c, true, nil
		}
	}

	now := s.clock().UTC()
	changed := false

	target, _ := targetStatus(ev, c.Status)
	if target != "" && CanTransition(c.Status, target) {
		c.Status = target
		changed = true

		switch target {
		case CallStatusInProgress:
			t := now
			c.ConnectedAt = &t
		case CallStatusCompleted, CallStatusNoAnswer:
			t := now
			c.EndedAt = &t
			if target == CallStatusCompleted {
				c.DurationSeconds = ev.DurationSeconds
			}
		case CallStatusFailed:
			t := now
			c.EndedAt = &t
			c.Notes = appendNote(c.Notes, "carrier reported "+ev.CarrierStatus)
		}
	}

	// Recording references may trail the terminal status event; patch them
	// idempotently regardless of the transition outcome.
	if ev.RecordingURL != "" && c.RecordingURL == "" {
		c.RecordingURL = ev.RecordingURL
		changed = true
	}

	if !changed {
		return c, false, nil
	}

	c.UpdatedAt = now
	if err := s.repo.Update(ctx, c); err != nil {
		return Call{}, false, err
	}
	return c, true, nil
}

// AttachRecording patches a recording reference onto a call, typically after
// the call has already completed. Idempotent by carrier call id.
func (s *Service) AttachRecording(ctx context.Context, carrierCallID, url string) (Call, error) {
	if carrierCallID == "" || url == "" {
		return Call{}, ErrInvalidEvent
	}

	unlock := s.locks.Lock(carrierCallID)
	defer unlock()

	c, ok, err := s.repo.GetByCarrierCallID(ctx, carrierCallID)
	if err != nil {
		return Call{}, err
	}
	if !ok {
		return Call{}, ErrNotFound
	}
	if c.RecordingURL != "" {
		return c, nil
	}
	c.RecordingURL = url
	c.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, c); err != nil {
		return Call{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Call, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListByLead(ctx context.Context, leadID string) ([]Call, error) {
	return s.repo.ListByLead(ctx, leadID)
}

// createFromStatus records a session first seen via a status webhook. Inbound
// calls are born here (at ringing); an outbound session whose initiation event
// was lost is recovered at initiating so the status can still apply.
func (s *Service) createFromStatus(ctx context.Context, ev StatusEvent) (Call, error) {
	dir := ev.Direction
	if dir == "" {
		dir = DirectionInbound
	}

	status := CallStatusInitiating
	remote := ev.To
	if dir == DirectionInbound {
		status = CallStatusRinging
		remote = ev.From
	}

	now := s.clock().UTC()
	c := Call{
		ID:            uuid.NewString(),
		CarrierCallID: ev.CarrierCallID,
		Direction:     dir,
		From:          ev.From,
		To:            ev.To,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.LeadID = s.resolveLead(ctx, remote)

	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			existing, _, gerr := s.repo.GetByCarrierCallID(ctx, ev.CarrierCallID)
			if gerr != nil {
				return Call{}, gerr
			}
			return existing, nil
		}
		return Call{}, err
	}
	return c, nil
}

// resolveLead maps the remote number to a lead. An unknown number is not an
// error; the call is kept with an empty lead id (the unmatched-caller path).
func (s *Service) resolveLead(ctx context.Context, phone string) string {
	if s.dir == nil || phone == "" {
		return ""
	}
	l, ok, err := s.dir.FindByPhone(ctx, phone)
	if err != nil || !ok {
		return ""
	}
	return l.ID
}

// targetStatus maps a raw carrier status onto the state machine, taking the
// current state into account: "completed" on a never-answered call is a
// no-answer, not a completion.
func targetStatus(ev StatusEvent, current CallStatus) (CallStatus, bool) {
	switch strings.ToLower(ev.CarrierStatus) {
	case "queued", "initiated":
		return CallStatusInitiating, false
	case "ringing":
		return CallStatusRinging, false
	case "in-progress", "answered":
		return CallStatusInProgress, false
	case "completed":
		if current == CallStatusInProgress {
			return CallStatusCompleted, true
		}
		return CallStatusNoAnswer, true
	case "no-answer":
		return CallStatusNoAnswer, true
	case "busy", "failed", "canceled":
		return CallStatusFailed, true
	default:
		return "", false
	}
}

func appendNote(existing, note string) string {
	if existing == "" {
		return note
	}
	return fmt.Sprintf("%s; %s", existing, note)
}
