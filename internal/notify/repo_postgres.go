package notify

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists dispatch notifications in table dispatch_notifications.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, n Notification) error {
	const q = `
INSERT INTO dispatch_notifications (
  id, kind, correlation_id, target_phone, body,
  message_id, carrier_message_id, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9,$10
)
`
	_, err := r.db.ExecContext(ctx, q,
		n.ID,
		n.Kind,
		n.CorrelationID,
		n.TargetPhone,
		n.Body,
		n.MessageID,
		n.CarrierMessageID,
		n.Status,
		n.CreatedAt,
		n.UpdatedAt,
	)
	return err
}

const notificationColumns = `
id, kind, correlation_id, target_phone, body,
COALESCE(message_id,''), COALESCE(carrier_message_id,''), status, created_at, updated_at
`

func scanNotification(row interface{ Scan(...any) error }) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.Kind,
		&n.CorrelationID,
		&n.TargetPhone,
		&n.Body,
		&n.MessageID,
		&n.CarrierMessageID,
		&n.Status,
		&n.CreatedAt,
		&n.UpdatedAt,
	)
	return n, err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM dispatch_notifications WHERE id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, ErrNotFound
		}
		return Notification{}, err
	}
	return n, nil
}

func (r *PostgresRepo) GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Notification, bool, error) {
	q := `SELECT ` + notificationColumns + ` FROM dispatch_notifications WHERE carrier_message_id = $1`
	n, err := scanNotification(r.db.QueryRowContext(ctx, q, carrierMessageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Notification{}, false, nil
		}
		return Notification{}, false, err
	}
	return n, true, nil
}

func (r *PostgresRepo) Update(ctx context.Context, n Notification) error {
	const q = `
UPDATE dispatch_notifications
SET status = $2, carrier_message_id = NULLIF($3,''), updated_at = $4
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, n.ID, n.Status, n.CarrierMessageID, n.UpdatedAt)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListByCorrelation(ctx context.Context, correlationID string) ([]Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM dispatch_notifications WHERE correlation_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, correlationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
