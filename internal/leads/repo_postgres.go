package leads

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresDirectory reads the leads table owned by the CRUD layer.
//
// Matching uses a normalized_phones array column maintained by the owning
// application; this repository never writes.
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) Get(ctx context.Context, id string) (Lead, error) {
	const q = `
SELECT id, name, phone, COALESCE(phone2,''), COALESCE(phone3,''), COALESCE(address,''), created_at
FROM leads
WHERE id = $1
`
	var l Lead
	if err := d.db.QueryRowContext(ctx, q, id).Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Phone2,
		&l.Phone3,
		&l.Address,
		&l.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

func (d *PostgresDirectory) FindByPhone(ctx context.Context, phone string) (Lead, bool, error) {
	norm := NormalizePhone(phone)
	if norm == "" {
		return Lead{}, false, nil
	}
	const q = `
SELECT id, name, phone, COALESCE(phone2,''), COALESCE(phone3,''), COALESCE(address,''), created_at
FROM leads
WHERE $1 = ANY(normalized_phones)
ORDER BY created_at DESC
LIMIT 1
`
	var l Lead
	if err := d.db.QueryRowContext(ctx, q, norm).Scan(
		&l.ID,
		&l.Name,
		&l.Phone,
		&l.Phone2,
		&l.Phone3,
		&l.Address,
		&l.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return l, true, nil
}
