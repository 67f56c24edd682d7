package alerts

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("alerts: not found")
	ErrAlreadyExists = errors.New("alerts: alert already exists for message")
)

type Repository interface {
	Create(ctx context.Context, a Alert) error
	Get(ctx context.Context, id string) (Alert, error)
	GetByMessageID(ctx context.Context, messageID string) (Alert, bool, error)
	Update(ctx context.Context, a Alert) error
	ListOpen(ctx context.Context) ([]Alert, error)
}
