package notify

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("notify: notification not found")

type Repository interface {
	Create(ctx context.Context, n Notification) error
	Get(ctx context.Context, id string) (Notification, error)
	GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Notification, bool, error)
	Update(ctx context.Context, n Notification) error
	ListByCorrelation(ctx context.Context, correlationID string) ([]Notification, error)
}
