package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `id, full_name, phone, date_of_birth, gender, address, allergies, notes, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FullName, &p.Phone, &p.DateOfBirth, &p.Gender,
		&p.Address, &p.Allergies, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "patient")
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, full_name, phone, date_of_birth, gender, address, allergies, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.FullName, p.Phone, p.DateOfBirth, p.Gender, p.Address, p.Allergies, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return db.MapError(err, "patient with this phone")
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET full_name=$2, phone=$3, date_of_birth=$4, gender=$5,
			address=$6, allergies=$7, notes=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.FullName, p.Phone, p.DateOfBirth, p.Gender, p.Address, p.Allergies, p.Notes,
	).Scan(&p.UpdatedAt)
	return db.MapError(err, "patient with this phone")
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	where := ` WHERE $1 = '' OR full_name ILIKE '%' || $1 || '%' OR phone LIKE '%' || $1 || '%'`
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, q).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+patientCols+` FROM patients`+where+` ORDER BY full_name LIMIT $2 OFFSET $3`, q, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) HasAppointments(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM appointments WHERE patient_id = $1)`, id).Scan(&exists)
	return exists, err
}

// =========== Medical Case Repository ===========

type caseRepoPG struct{ pool *pgxpool.Pool }

func NewCaseRepoPG(pool *pgxpool.Pool) CaseRepository { return &caseRepoPG{pool: pool} }

const caseCols = `id, patient_id, title, description, status, created_at, updated_at`

func scanCase(row pgx.Row) (*MedicalCase, error) {
	var m MedicalCase
	if err := row.Scan(&m.ID, &m.PatientID, &m.Title, &m.Description, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, db.MapError(err, "medical case")
	}
	return &m, nil
}

func (r *caseRepoPG) Create(ctx context.Context, m *MedicalCase) error {
	m.ID = uuid.New()
	return db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO medical_cases (id, patient_id, title, description, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.Title, m.Description, m.Status).Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalCase, error) {
	return scanCase(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+caseCols+` FROM medical_cases WHERE id = $1`, id))
}

func (r *caseRepoPG) Update(ctx context.Context, m *MedicalCase) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE medical_cases SET title=$2, description=$3, status=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Title, m.Description, m.Status).Scan(&m.UpdatedAt)
	return db.MapError(err, "medical case")
}

func (r *caseRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalCase, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM medical_cases WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn.Query(ctx, `SELECT `+caseCols+` FROM medical_cases WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*MedicalCase
	for rows.Next() {
		m, err := scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}
