package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

const apptCols = `id, patient_id, dentist_id, medical_case_id, start_time, end_time, base_price_syp,
	status, cancellation_reason, notes, created_by, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DentistID, &a.MedicalCaseID, &a.StartTime, &a.EndTime,
		&a.BasePriceSyp, &a.Status, &a.CancellationReason, &a.Notes, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "appointment")
	}
	return &a, nil
}

func (r *appointmentRepoPG) collect(rows pgx.Rows, err error) ([]*Appointment, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, dentist_id, medical_case_id, start_time, end_time,
			base_price_syp, status, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DentistID, a.MedicalCaseID, a.StartTime, a.EndTime,
		a.BasePriceSyp, a.Status, a.Notes, a.CreatedBy).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1 FOR UPDATE`, id))
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET dentist_id=$2, medical_case_id=$3, start_time=$4, end_time=$5,
			base_price_syp=$6, notes=$7, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.DentistID, a.MedicalCaseID, a.StartTime, a.EndTime, a.BasePriceSyp, a.Notes).Scan(&a.UpdatedAt)
	return db.MapError(err, "appointment")
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE appointments SET status=$2, cancellation_reason=$3, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.CancellationReason).Scan(&a.UpdatedAt)
	return db.MapError(err, "appointment")
}

func (r *appointmentRepoPG) FindOverlapping(ctx context.Context, dentistID uuid.UUID, start, end time.Time, exclude *uuid.UUID) ([]*Appointment, error) {
	return r.collect(db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE dentist_id = $1
		  AND status <> 'CANCELLED'
		  AND start_time < $3 AND end_time > $2
		  AND ($4::uuid IS NULL OR id <> $4)
		ORDER BY start_time`,
		dentistID, start, end, exclude))
}

func (r *appointmentRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where += fmt.Sprintf(clause, len(args))
	}
	if f.DentistID != nil {
		add(` AND dentist_id = $%d`, *f.DentistID)
	}
	if f.PatientID != nil {
		add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.Status != "" {
		add(` AND status = $%d`, f.Status)
	}
	if f.From != nil {
		add(` AND start_time >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND start_time <= $%d`, *f.To)
	}

	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	items, err := r.collect(q.Query(ctx, `SELECT `+apptCols+` FROM appointments`+where+
		fmt.Sprintf(` ORDER BY start_time LIMIT $%d OFFSET $%d`, n+1, n+2), append(args, limit, offset)...))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}
