package messaging

import "time"

// Message is one SMS unit in a conversation.
//
// CarrierMessageID is the carrier dedup key; inbound retries and delivery
// callbacks correlate on it. A failed outbound submission has no carrier id
// but is still persisted for audit continuity.
//
// Rows are immutable once created except for delivery-status updates.
type Message struct {
	ID string `json:"id" db:"id"`

	// LeadID is empty for messages from numbers no lead owns.
	LeadID string `json:"lead_id,omitempty" db:"lead_id"`

	// Phone is the remote party's number.
	Phone string `json:"phone" db:"phone"`

	Direction Direction `json:"direction" db:"direction"`
	Body      string    `json:"body" db:"body"`

	CarrierMessageID string `json:"carrier_message_id,omitempty" db:"carrier_message_id"`

	Status DeliveryStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"

	// StatusReceived is the only status inbound messages ever hold.
	StatusReceived DeliveryStatus = "received"
)

// statusRank keeps delivery updates monotonic; a late "sent" callback must not
// demote a message already marked delivered.
var statusRank = map[DeliveryStatus]int{
	StatusSending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusFailed:    2,
}

// AdvancesDelivery reports whether moving from -> to is a forward update.
func AdvancesDelivery(from, to DeliveryStatus) bool {
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}
