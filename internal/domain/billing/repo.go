package billing

import (
	"context"

	"github.com/google/uuid"
)

type VisitRepository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	List(ctx context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error)
}

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// GetByIDForUpdate locks the invoice row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// UpdateBalance writes paid_syp, status and status_note.
	UpdateBalance(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	MarkVoided(ctx context.Context, p *Payment) error
	SumActive(ctx context.Context, invoiceID uuid.UUID) (int64, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
	List(ctx context.Context, f PaymentFilter, limit, offset int) ([]*Payment, int, error)
}
