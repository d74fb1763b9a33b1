package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) RevenueByDentist(ctx context.Context, from, to time.Time) ([]DentistRevenue, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT i.dentist_id, COALESCE(SUM(p.amount_syp), 0)::bigint
		FROM payments p
		JOIN invoices i ON i.id = p.invoice_id
		WHERE p.status = 'ACTIVE' AND p.paid_at >= $1 AND p.paid_at <= $2
		GROUP BY i.dentist_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DentistRevenue
	for rows.Next() {
		var d DentistRevenue
		if err := rows.Scan(&d.DentistID, &d.RevenueSyp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *repoPG) Expenses(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity * unit_cost_syp), 0)::bigint
		FROM inventory_movements
		WHERE type = 'IN' AND created_at >= $1 AND created_at <= $2`, from, to).Scan(&total)
	return total, err
}

func (r *repoPG) AppointmentCounts(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]StatusCount, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT dentist_id, status, COUNT(*)
		FROM appointments
		WHERE start_time >= $1 AND start_time <= $2 AND ($3::uuid IS NULL OR dentist_id = $3)
		GROUP BY dentist_id, status`, from, to, dentistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.DentistID, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
