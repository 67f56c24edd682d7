package calls

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("calls: not found")
	ErrAlreadyExists = errors.New("calls: carrier call id already exists")
)

// Repository is the persistence contract for call records.
//
// No Delete is provided by design; calls only move to terminal states.
type Repository interface {
	Create(ctx context.Context, c Call) error
	Update(ctx context.Context, c Call) error
	GetByCarrierCallID(ctx context.Context, carrierCallID string) (Call, bool, error)
	Get(ctx context.Context, id string) (Call, error)
	ListByLead(ctx context.Context, leadID string) ([]Call, error)
}
