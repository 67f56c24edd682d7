package history

import (
	"time"

	"calldesk-platform/internal/calls"
	"calldesk-platform/internal/messaging"
)

// Entry is one item in a lead's combined timeline. Exactly one of Call or
// Message is set, discriminated by Kind.
type Entry struct {
	Kind       EntryKind `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`

	Call    *calls.Call        `json:"call,omitempty"`
	Message *messaging.Message `json:"message,omitempty"`
}

type EntryKind string

const (
	EntryKindCall    EntryKind = "call"
	EntryKindMessage EntryKind = "message"
)

// CallsSummary aggregates a lead's call outcomes for the detail view.
type CallsSummary struct {
	LeadID string `json:"lead_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	ActiveCalls    int `json:"active_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	RecordedCalls int `json:"recorded_calls"`
}
