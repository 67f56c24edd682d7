package messaging

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("messaging: not found")
	ErrAlreadyExists = errors.New("messaging: carrier message id already exists")
)

// Repository is the persistence contract for the conversation ledger.
// Append/transition only: no update path besides delivery status, no delete.
type Repository interface {
	Create(ctx context.Context, m Message) error
	GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Message, bool, error)
	UpdateStatus(ctx context.Context, m Message) error
	ListByLead(ctx context.Context, leadID string) ([]Message, error)
	ListByPhone(ctx context.Context, phone string) ([]Message, error)
}
