package history

import (
	"context"
	"errors"
	"sort"

	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/messaging"
)

var ErrInvalidRequest = errors.New("history: invalid request")

// CallReader and MessageReader are the read slices of the underlying stores.

type CallReader interface {
	ListByLead(ctx context.Context, leadID string) ([]calls.Call, error)
}

type MessageReader interface {
	ListByLead(ctx context.Context, leadID string) ([]messaging.Message, error)
}

// Service builds read models for lead detail views. It never mutates.
type Service struct {
	calls    CallReader
	messages MessageReader
}

func NewService(callReader CallReader, messageReader MessageReader) *Service {
	return &Service{calls: callReader, messages: messageReader}
}

// Timeline merges a lead's calls and messages into one chronological feed.
// Ties sort messages first so an SMS sent during a call reads in order.
func (s *Service) Timeline(ctx context.Context, leadID string) ([]Entry, error) {
	if leadID == "" {
		return nil, ErrInvalidRequest
	}

	callRows, err := s.calls.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	msgRows, err := s.messages.ListByLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(callRows)+len(msgRows))
	for i := range callRows {
		out = append(out, Entry{
			Kind:       EntryKindCall,
			OccurredAt: callRows[i].CreatedAt,
			Call:       &callRows[i],
		})
	}
	for i := range msgRows {
		out = append(out, Entry{
			Kind:       EntryKindMessage,
			OccurredAt: msgRows[i].CreatedAt,
			Message:    &msgRows[i],
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].Kind == EntryKindMessage && out[j].Kind == EntryKindCall
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

// Summary aggregates the lead's call outcomes.
func (s *Service) Summary(ctx context.Context, leadID string) (CallsSummary, error) {
	if leadID == "" {
		return CallsSummary{}, ErrInvalidRequest
	}

	rows, err := s.calls.ListByLead(ctx, leadID)
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{LeadID: leadID}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		default:
			out.ActiveCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
