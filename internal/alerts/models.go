package alerts

import "time"

// Alert is a follow-up marker raised when an inbound SMS arrives outside an
// active conversation window. Created by the webhook router, read and marked
// by the follow-up inbox UI, never auto-deleted.
type Alert struct {
	ID string `json:"id" db:"id"`

	// LeadID is empty for unmatched senders; Phone always identifies the thread.
	LeadID string `json:"lead_id,omitempty" db:"lead_id"`
	Phone  string `json:"phone" db:"phone"`

	// MessageID is the inbound message that raised the alert. One alert per
	// message, enforced by uniqueness.
	MessageID string `json:"message_id" db:"message_id"`

	Status Status `json:"status" db:"status"`

	AssigneeID string     `json:"assignee_id,omitempty" db:"assignee_id"`
	FollowUpAt *time.Time `json:"follow_up_at,omitempty" db:"follow_up_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusUnread Status = "unread"
	StatusRead   Status = "read"
)
