package profitshare

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const cols = `id, dentist_id, percentage, created_at, updated_at`

func scanShare(row pgx.Row) (*Share, error) {
	var s Share
	if err := row.Scan(&s.ID, &s.DentistID, &s.Percentage, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, db.MapError(err, "profit share")
	}
	return &s, nil
}

func (r *repoPG) Create(ctx context.Context, s *Share) error {
	s.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO dentist_profit_shares (id, dentist_id, percentage)
		VALUES ($1,$2,$3)
		RETURNING created_at, updated_at`,
		s.ID, s.DentistID, s.Percentage).Scan(&s.CreatedAt, &s.UpdatedAt)
	return db.MapError(err, "profit share for this dentist")
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Share, error) {
	return scanShare(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM dentist_profit_shares WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Share, error) {
	return scanShare(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+cols+` FROM dentist_profit_shares WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Share) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE dentist_profit_shares SET percentage = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`, s.ID, s.Percentage).Scan(&s.UpdatedAt)
	return db.MapError(err, "profit share")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM dentist_profit_shares WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, dentistID *uuid.UUID, limit, offset int) ([]*Share, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM dentist_profit_shares WHERE ($1::uuid IS NULL OR dentist_id = $1)`,
		dentistID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+cols+` FROM dentist_profit_shares
		WHERE ($1::uuid IS NULL OR dentist_id = $1)
		ORDER BY created_at LIMIT $2 OFFSET $3`, dentistID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collect(rows)
	return items, total, err
}

func (r *repoPG) All(ctx context.Context) ([]*Share, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+cols+` FROM dentist_profit_shares`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Share, error) {
	defer rows.Close()
	var items []*Share
	for rows.Next() {
		s, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}
