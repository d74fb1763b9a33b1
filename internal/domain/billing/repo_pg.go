package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

// where accumulates optional filter clauses with numbered placeholders.
type where struct {
	sql  string
	args []interface{}
}

func (w *where) add(clause string, v interface{}) {
	w.args = append(w.args, v)
	w.sql += fmt.Sprintf(clause, len(w.args))
}

func (w *where) page(limit, offset int) (string, []interface{}) {
	n := len(w.args)
	return fmt.Sprintf(` LIMIT $%d OFFSET $%d`, n+1, n+2), append(append([]interface{}{}, w.args...), limit, offset)
}

// =========== Visit Repository ===========

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) VisitRepository { return &visitRepoPG{pool: pool} }

const visitCols = `id, appointment_id, patient_id, dentist_id, base_price_syp, discount_type,
	discount_value, discount_syp, final_price_syp, notes, created_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.AppointmentID, &v.PatientID, &v.DentistID, &v.BasePriceSyp, &v.DiscountType,
		&v.DiscountValue, &v.DiscountSyp, &v.FinalPriceSyp, &v.Notes, &v.CreatedAt)
	if err != nil {
		return nil, db.MapError(err, "visit")
	}
	return &v, nil
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO visits (id, appointment_id, patient_id, dentist_id, base_price_syp, discount_type,
			discount_value, discount_syp, final_price_syp, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		v.ID, v.AppointmentID, v.PatientID, v.DentistID, v.BasePriceSyp, v.DiscountType,
		v.DiscountValue, v.DiscountSyp, v.FinalPriceSyp, v.Notes).Scan(&v.CreatedAt)
	return db.MapError(err, "visit for this appointment")
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return scanVisit(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
}

func (r *visitRepoPG) List(ctx context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	w := &where{sql: ` WHERE 1=1`}
	if f.DentistID != nil {
		w.add(` AND dentist_id = $%d`, *f.DentistID)
	}
	if f.PatientID != nil {
		w.add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.From != nil {
		w.add(` AND created_at >= $%d`, *f.From)
	}
	if f.To != nil {
		w.add(` AND created_at <= $%d`, *f.To)
	}
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM visits`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.page(limit, offset)
	rows, err := q.Query(ctx, `SELECT `+visitCols+` FROM visits`+w.sql+` ORDER BY created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
	}
	return items, total, rows.Err()
}

// =========== Invoice Repository ===========

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invoiceCols = `id, visit_id, patient_id, dentist_id, total_syp, paid_syp, status, status_note, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.VisitID, &inv.PatientID, &inv.DentistID, &inv.TotalSyp, &inv.PaidSyp,
		&inv.Status, &inv.StatusNote, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err, "invoice")
	}
	return &inv, nil
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO invoices (id, visit_id, patient_id, dentist_id, total_syp, paid_syp, status, status_note)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		inv.ID, inv.VisitID, inv.PatientID, inv.DentistID, inv.TotalSyp, inv.PaidSyp, inv.Status, inv.StatusNote,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	return db.MapError(err, "invoice for this visit")
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1`, id))
}

func (r *invoiceRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return scanInvoice(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+invoiceCols+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
}

func (r *invoiceRepoPG) UpdateBalance(ctx context.Context, inv *Invoice) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE invoices SET paid_syp=$2, status=$3, status_note=$4, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		inv.ID, inv.PaidSyp, inv.Status, inv.StatusNote).Scan(&inv.UpdatedAt)
	return db.MapError(err, "invoice")
}

func (r *invoiceRepoPG) List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	w := &where{sql: ` WHERE 1=1`}
	if f.DentistID != nil {
		w.add(` AND dentist_id = $%d`, *f.DentistID)
	}
	if f.PatientID != nil {
		w.add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.Status != "" {
		w.add(` AND status = $%d`, f.Status)
	}
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.page(limit, offset)
	rows, err := q.Query(ctx, `SELECT `+invoiceCols+` FROM invoices`+w.sql+` ORDER BY created_at DESC`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, inv)
	}
	return items, total, rows.Err()
}

// =========== Payment Repository ===========

type paymentRepoPG struct{ pool *pgxpool.Pool }

func NewPaymentRepoPG(pool *pgxpool.Pool) PaymentRepository { return &paymentRepoPG{pool: pool} }

const paymentCols = `p.id, p.invoice_id, p.amount_syp, p.method, p.paid_at, p.status, p.void_reason,
	p.voided_at, p.voided_by, p.notes, p.created_by, p.created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.InvoiceID, &p.AmountSyp, &p.Method, &p.PaidAt, &p.Status, &p.VoidReason,
		&p.VoidedAt, &p.VoidedBy, &p.Notes, &p.CreatedBy, &p.CreatedAt)
	if err != nil {
		return nil, db.MapError(err, "payment")
	}
	return &p, nil
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO payments (id, invoice_id, amount_syp, method, paid_at, status, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		p.ID, p.InvoiceID, p.AmountSyp, p.Method, p.PaidAt, p.Status, p.Notes, p.CreatedBy).Scan(&p.CreatedAt)
	return db.MapError(err, "payment")
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+paymentCols+` FROM payments p WHERE p.id = $1`, id))
}

func (r *paymentRepoPG) MarkVoided(ctx context.Context, p *Payment) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE payments SET status=$2, void_reason=$3, voided_at=$4, voided_by=$5
		WHERE id = $1 AND status = 'ACTIVE'`,
		p.ID, p.Status, p.VoidReason, p.VoidedAt, p.VoidedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.MapError(pgx.ErrNoRows, "active payment")
	}
	return nil
}

func (r *paymentRepoPG) SumActive(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_syp), 0)::bigint FROM payments WHERE invoice_id = $1 AND status = 'ACTIVE'`,
		invoiceID).Scan(&sum)
	return sum, err
}

func (r *paymentRepoPG) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+paymentCols+` FROM payments p WHERE p.invoice_id = $1 ORDER BY p.paid_at, p.created_at`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *paymentRepoPG) List(ctx context.Context, f PaymentFilter, limit, offset int) ([]*Payment, int, error) {
	w := &where{sql: ` WHERE 1=1`}
	if f.InvoiceID != nil {
		w.add(` AND p.invoice_id = $%d`, *f.InvoiceID)
	}
	if f.DentistID != nil {
		w.add(` AND i.dentist_id = $%d`, *f.DentistID)
	}
	if f.Status != "" {
		w.add(` AND p.status = $%d`, f.Status)
	}
	if f.Method != "" {
		w.add(` AND p.method = $%d`, f.Method)
	}
	if f.From != nil {
		w.add(` AND p.paid_at >= $%d`, *f.From)
	}
	if f.To != nil {
		w.add(` AND p.paid_at <= $%d`, *f.To)
	}
	from := ` FROM payments p JOIN invoices i ON i.id = p.invoice_id`
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*)`+from+w.sql, w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := w.page(limit, offset)
	rows, err := q.Query(ctx, `SELECT `+paymentCols+from+w.sql+` ORDER BY p.paid_at DESC`+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
