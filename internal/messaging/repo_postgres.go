package messaging

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists the message ledger.
//
// Schema assumptions:
// - Table messages with a partial UNIQUE index on carrier_message_id
//   (WHERE carrier_message_id IS NOT NULL); failed sends carry none.
// - Rows are never deleted.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, m Message) error {
	const q = `
INSERT INTO messages (
  id, lead_id, phone, direction, body, carrier_message_id, status, created_at, updated_at
) VALUES (
  $1,NULLIF($2,''),$3,$4,$5,NULLIF($6,''),$7,$8,$9
)
ON CONFLICT (carrier_message_id) WHERE carrier_message_id IS NOT NULL DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		m.ID,
		m.LeadID,
		m.Phone,
		m.Direction,
		m.Body,
		m.CarrierMessageID,
		m.Status,
		m.CreatedAt,
		m.UpdatedAt,
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

const messageColumns = `
id, COALESCE(lead_id,''), phone, direction, body,
COALESCE(carrier_message_id,''), status, created_at, updated_at
`

func scanMessage(row interface{ Scan(...any) error }) (Message, error) {
	var m Message
	err := row.Scan(
		&m.ID,
		&m.LeadID,
		&m.Phone,
		&m.Direction,
		&m.Body,
		&m.CarrierMessageID,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func (r *PostgresRepo) GetByCarrierMessageID(ctx context.Context, carrierMessageID string) (Message, bool, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE carrier_message_id = $1`
	m, err := scanMessage(r.db.QueryRowContext(ctx, q, carrierMessageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, false, nil
		}
		return Message{}, false, err
	}
	return m, true, nil
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, m Message) error {
	const q = `UPDATE messages SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, m.ID, m.Status, m.UpdatedAt)
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

func (r *PostgresRepo) ListByLead(ctx context.Context, leadID string) ([]Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE lead_id = $1 ORDER BY created_at ASC, id ASC`
	return r.queryList(ctx, q, leadID)
}

func (r *PostgresRepo) ListByPhone(ctx context.Context, phone string) ([]Message, error) {
	q := `SELECT ` + messageColumns + ` FROM messages WHERE phone = $1 ORDER BY created_at ASC, id ASC`
	return r.queryList(ctx, q, phone)
}

func (r *PostgresRepo) queryList(ctx context.Context, q string, arg any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
