package calls

import "time"

// Call represents one telephony session with the carrier.
//
// CarrierCallID is the carrier's session id and the authoritative dedup key:
// every webhook for the same session carries it, and replayed deliveries must
// collapse onto one row.
//
// Mutation ownership: only the Service in this package advances Status. Rows
// are never deleted; terminal calls stay for lead history and audit.
type Call struct {
	ID            string `json:"id" db:"id"`
	CarrierCallID string `json:"carrier_call_id" db:"carrier_call_id"`

	Direction Direction `json:"direction" db:"direction"`

	From string `json:"from" db:"from_number"`
	To   string `json:"to" db:"to_number"`

	// UserID is the owning agent. Empty for inbound calls that have not been
	// claimed and for unmatched callers.
	UserID string `json:"user_id,omitempty" db:"user_id"`

	// LeadID is resolved from the remote number. Empty when no lead matches.
	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	Status CallStatus `json:"status" db:"status"`

	// DurationSeconds is set exactly once, by the terminal status event.
	DurationSeconds int `json:"duration" db:"duration"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`

	// Notes carries the carrier-reported failure reason on failed calls plus
	// any agent free text.
	Notes string `json:"notes,omitempty" db:"notes"`

	ConnectedAt *time.Time `json:"connected_at,omitempty" db:"connected_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Unmatched reports whether this is an inbound call from a number no lead owns.
// A capability flag for front-line views, not a separate type.
func (c Call) Unmatched() bool {
	return c.Direction == DirectionInbound && c.LeadID == ""
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallStatus string

const (
	CallStatusInitiating CallStatus = "initiating"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
)

// statusRank orders states along the lifecycle. Transitions only move to a
// strictly higher rank; equal or lower rank means a duplicate or out-of-order
// delivery and is a no-op.
var statusRank = map[CallStatus]int{
	CallStatusInitiating: 0,
	CallStatusRinging:    1,
	CallStatusInProgress: 2,
	CallStatusCompleted:  3,
	CallStatusFailed:     3,
	CallStatusNoAnswer:   3,
}

func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer:
		return true
	default:
		return false
	}
}

// CanTransition reports whether from -> to is a valid forward edge.
func CanTransition(from, to CallStatus) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	if tr <= fr {
		return false
	}
	switch to {
	case CallStatusRinging:
		return from == CallStatusInitiating
	case CallStatusInProgress:
		// Carriers may skip the ringing event on fast answer.
		return from == CallStatusInitiating || from == CallStatusRinging
	case CallStatusCompleted:
		return from == CallStatusInProgress
	case CallStatusNoAnswer:
		return from == CallStatusInitiating || from == CallStatusRinging
	case CallStatusFailed:
		return !from.Terminal()
	default:
		return false
	}
}
