package calls

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists call records.
//
// Schema assumptions:
// - Table calls with UNIQUE (carrier_call_id).
// - Rows are never deleted.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	// ON CONFLICT DO NOTHING makes the unique key the dedup backstop when two
	// processes race on the first event for a session.
	const q = `
INSERT INTO calls (
  id, carrier_call_id, direction, from_number, to_number, user_id, lead_id,
  status, duration, recording_url, notes, connected_at, ended_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9,$10,$11,$12,$13,$14,$15
)
ON CONFLICT (carrier_call_id) DO NOTHING
`
	res, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.CarrierCallID,
		c.Direction,
		c.From,
		c.To,
		c.UserID,
		c.LeadID,
		c.Status,
		c.DurationSeconds,
		c.RecordingURL,
		c.Notes,
		c.ConnectedAt,
		c.EndedAt,
		c.CreatedAt,
		c.UpdatedAt,
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

func (r *PostgresRepo) Update(ctx context.Context, c Call) error {
	const q = `
UPDATE calls
SET status = $2, user_id = NULLIF($3,''), lead_id = NULLIF($4,''), duration = $5,
    recording_url = $6, notes = $7, connected_at = $8, ended_at = $9, updated_at = $10
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.Status,
		c.UserID,
		c.LeadID,
		c.DurationSeconds,
		c.RecordingURL,
		c.Notes,
		c.ConnectedAt,
		c.EndedAt,
		c.UpdatedAt,
	)
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

const callColumns = `
id, carrier_call_id, direction, from_number, to_number,
COALESCE(user_id,''), COALESCE(lead_id,''), status, duration,
COALESCE(recording_url,''), COALESCE(notes,''), connected_at, ended_at, created_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	err := row.Scan(
		&c.ID,
		&c.CarrierCallID,
		&c.Direction,
		&c.From,
		&c.To,
		&c.UserID,
		&c.LeadID,
		&c.Status,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.Notes,
		&c.ConnectedAt,
		&c.EndedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (r *PostgresRepo) GetByCarrierCallID(ctx context.Context, carrierCallID string) (Call, bool, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE carrier_call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, carrierCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) ListByLead(ctx context.Context, leadID string) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE lead_id = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
