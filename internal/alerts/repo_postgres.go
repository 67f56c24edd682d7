package alerts

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists follow-up alerts.
//
// Schema assumptions:
// - Table inbound_alerts with UNIQUE (message_id).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, a Alert) error {
	const q = `
INSERT INTO inbound_alerts (
  id, lead_id, phone, message_id, status, assignee_id, follow_up_at, created_at, updated_at
) VALUES (
  $1,NULLIF($2,''),$3,$4,$5,NULLIF($6,''),$7,$8,$9
)
ON CONFLICT (message_id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		a.ID,
		a.LeadID,
		a.Phone,
		a.MessageID,
		a.Status,
		a.AssigneeID,
		a.FollowUpAt,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

const alertColumns = `
id, COALESCE(lead_id,''), phone, message_id, status,
COALESCE(assignee_id,''), follow_up_at, created_at, updated_at
`

func scanAlert(row interface{ Scan(...any) error }) (Alert, error) {
	var a Alert
	err := row.Scan(
		&a.ID,
		&a.LeadID,
		&a.Phone,
		&a.MessageID,
		&a.Status,
		&a.AssigneeID,
		&a.FollowUpAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM inbound_alerts WHERE id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, err
	}
	return a, nil
}

func (r *PostgresRepo) GetByMessageID(ctx context.Context, messageID string) (Alert, bool, error) {
	q := `SELECT ` + alertColumns + ` FROM inbound_alerts WHERE message_id = $1`
	a, err := scanAlert(r.db.QueryRowContext(ctx, q, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Alert{}, false, nil
		}
		return Alert{}, false, err
	}
	return a, true, nil
}

func (r *PostgresRepo) Update(ctx context.Context, a Alert) error {
	const q = `
UPDATE inbound_alerts
SET status = $2, assignee_id = NULLIF($3,''), follow_up_at = $4, updated_at = $5
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, a.ID, a.Status, a.AssigneeID, a.FollowUpAt, a.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListOpen(ctx context.Context) ([]Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM inbound_alerts WHERE status = 'unread' ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Alert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
