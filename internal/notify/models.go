package notify

import (
	"time"

	"calldesk-platform/internal/messaging"
)

// Notification is one templated dispatch SMS tied back to the business event
// that triggered it. A repeat notify call for the same event creates a new
// row and re-sends: operator-triggered resends are expected and must stay
// distinguishable from carrier-level retries (deduplicated at the channel).
type Notification struct {
	ID   string `json:"id" db:"id"`
	Kind Kind   `json:"kind" db:"kind"`

	// CorrelationID is the appointment or dispatch event id.
	CorrelationID string `json:"correlation_id" db:"correlation_id"`

	TargetPhone string `json:"target_phone" db:"target_phone"`
	Body        string `json:"body" db:"body"`

	// MessageID/CarrierMessageID link the ledger entry for this send, so the
	// notification gets the same status-callback treatment as agent SMS.
	MessageID        string `json:"message_id,omitempty" db:"message_id"`
	CarrierMessageID string `json:"carrier_message_id,omitempty" db:"carrier_message_id"`

	Status messaging.DeliveryStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Kind string

const (
	KindAppointment    Kind = "appointment"
	KindVendorDispatch Kind = "vendor_dispatch"
)

// Appointment is the slice of the scheduling collaborator's record the
// notifier needs.
type Appointment struct {
	ID          string
	LeadID      string
	Address     string
	ScheduledAt time.Time
}

// Contact is a notification target: a salesperson or a vendor.
type Contact struct {
	ID    string
	Name  string
	Phone string
}
