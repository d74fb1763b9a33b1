package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

const (
	entityVisit   = "visit"
	entityInvoice = "invoice"
	entityPayment = "payment"
)

type Service struct {
	tx       db.TxRunner
	visits   VisitRepository
	invoices InvoiceRepository
	payments PaymentRepository
	audit    auditlog.Recorder
	now      func() time.Time
}

func NewService(tx db.TxRunner, visits VisitRepository, invoices InvoiceRepository, payments PaymentRepository, audit auditlog.Recorder) *Service {
	return &Service{tx: tx, visits: visits, invoices: invoices, payments: payments, audit: audit, now: time.Now}
}

// CompleteVisit creates the visit, its invoice and an optional initial
// payment. Scheduling calls it inside the transaction that marks the
// appointment COMPLETED, so every write commits or rolls back together.
func (s *Service) CompleteVisit(ctx context.Context, actor auth.Actor, in Completion) (*CompletionResult, error) {
	discount, final, err := lifecycle.FinalPrice(in.BasePriceSyp, in.DiscountType, in.DiscountValue)
	if err != nil {
		return nil, err
	}
	if in.PaidAmountSyp < 0 {
		return nil, apperr.Field("paid_amount_syp", "must not be negative")
	}
	if in.PaidAmountSyp > final {
		return nil, apperr.Rule("paid amount %d SYP exceeds the final price of %d SYP", in.PaidAmountSyp, final)
	}
	method := in.PaymentMethod
	if method == "" {
		method = MethodCash
	}
	if in.PaidAmountSyp > 0 && !method.Valid() {
		return nil, apperr.Field("payment_method", "must be one of: CASH CARD BANK_TRANSFER")
	}
	discountType := in.DiscountType
	if discountType == "" {
		discountType = lifecycle.DiscountNone
	}

	res := &CompletionResult{}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		v := &Visit{
			AppointmentID: in.AppointmentID,
			PatientID:     in.PatientID,
			DentistID:     in.DentistID,
			BasePriceSyp:  in.BasePriceSyp,
			DiscountType:  discountType,
			DiscountValue: in.DiscountValue,
			DiscountSyp:   discount,
			FinalPriceSyp: final,
			Notes:         in.Notes,
		}
		if err := s.visits.Create(ctx, v); err != nil {
			return fmt.Errorf("create visit: %w", err)
		}
		if err := s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityVisit, EntityID: v.ID, After: v.snapshot(),
		}); err != nil {
			return err
		}

		inv := &Invoice{
			VisitID:   v.ID,
			PatientID: v.PatientID,
			DentistID: v.DentistID,
			TotalSyp:  final,
			Status:    lifecycle.DeriveInvoiceStatus(final, 0),
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityInvoice, EntityID: inv.ID, After: inv.snapshot(),
		}); err != nil {
			return err
		}
		res.Visit, res.Invoice = v, inv

		if in.PaidAmountSyp > 0 {
			p, err := s.addPayment(ctx, actor, inv, in.PaidAmountSyp, method, s.now(), nil)
			if err != nil {
				return err
			}
			res.Payment = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// addPayment inserts an ACTIVE payment against a locked invoice and moves
// the invoice balance and status.
func (s *Service) addPayment(ctx context.Context, actor auth.Actor, inv *Invoice, amount int64, method PaymentMethod, paidAt time.Time, notes *string) (*Payment, error) {
	p := &Payment{
		InvoiceID: inv.ID,
		AmountSyp: amount,
		Method:    method,
		PaidAt:    paidAt,
		Status:    PaymentActive,
		Notes:     notes,
	}
	if !actor.IsSystem() {
		id := actor.UserID
		p.CreatedBy = &id
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.audit.Record(ctx, actor, auditlog.Entry{
		Action: auditlog.ActionCreate, EntityType: entityPayment, EntityID: p.ID, After: p.snapshot(),
	}); err != nil {
		return nil, err
	}
	if err := s.setPaid(ctx, actor, inv, inv.PaidSyp+amount); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) setPaid(ctx context.Context, actor auth.Actor, inv *Invoice, paid int64) error {
	before := inv.snapshot()
	inv.PaidSyp = paid
	inv.Status = lifecycle.DeriveInvoiceStatus(inv.TotalSyp, paid)
	if err := s.invoices.UpdateBalance(ctx, inv); err != nil {
		return fmt.Errorf("update invoice balance: %w", err)
	}
	action := auditlog.ActionUpdate
	if before.Status != inv.Status {
		action = auditlog.ActionStatusChange
	}
	return s.audit.Record(ctx, actor, auditlog.Entry{
		Action: action, EntityType: entityInvoice, EntityID: inv.ID, Before: before, After: inv.snapshot(),
	})
}

// CreatePayment records a payment. The invoice row is locked first so two
// concurrent payments cannot both pass the balance check.
func (s *Service) CreatePayment(ctx context.Context, actor auth.Actor, in PaymentInput) (*Payment, error) {
	if in.AmountSyp <= 0 {
		return nil, apperr.Field("amount_syp", "must be greater than 0")
	}
	if !in.Method.Valid() {
		return nil, apperr.Field("method", "must be one of: CASH CARD BANK_TRANSFER")
	}
	paidAt := s.now()
	if in.PaidAt != nil {
		paidAt = *in.PaidAt
	}
	var p *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByIDForUpdate(ctx, in.InvoiceID)
		if err != nil {
			return err
		}
		if inv.Status == lifecycle.InvoicePaid {
			return apperr.Rule("invoice is already paid")
		}
		if in.AmountSyp > inv.BalanceSyp() {
			return apperr.Rule("payment of %d SYP exceeds the remaining balance of %d SYP", in.AmountSyp, inv.BalanceSyp())
		}
		p, err = s.addPayment(ctx, actor, inv, in.AmountSyp, in.Method, paidAt, in.Notes)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// VoidPayment marks a payment VOIDED and recomputes the invoice balance
// from the remaining active payments.
func (s *Service) VoidPayment(ctx context.Context, actor auth.Actor, id uuid.UUID, reason string) (*Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Field("reason", "is required")
	}
	var p *Payment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		found, err := s.payments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		inv, err := s.invoices.GetByIDForUpdate(ctx, found.InvoiceID)
		if err != nil {
			return err
		}
		// Re-read under the invoice lock; a concurrent void may have won.
		if p, err = s.payments.GetByID(ctx, id); err != nil {
			return err
		}
		if p.Status == PaymentVoided {
			return apperr.Rule("payment is already voided")
		}
		before := p.snapshot()
		now := s.now()
		p.Status = PaymentVoided
		p.VoidReason = &reason
		p.VoidedAt = &now
		if !actor.IsSystem() {
			uid := actor.UserID
			p.VoidedBy = &uid
		}
		if err := s.payments.MarkVoided(ctx, p); err != nil {
			return fmt.Errorf("void payment: %w", err)
		}
		if err := s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionVoid, EntityType: entityPayment, EntityID: p.ID, Before: before, After: p.snapshot(),
		}); err != nil {
			return err
		}
		paid, err := s.payments.SumActive(ctx, inv.ID)
		if err != nil {
			return fmt.Errorf("sum active payments: %w", err)
		}
		return s.setPaid(ctx, actor, inv, paid)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateInvoiceStatus is the manager override. It only checks the
// transition table, so the stored status may differ from what the amounts
// imply until the next payment or void re-derives it.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, status lifecycle.InvoiceStatus, note string) (*Invoice, error) {
	if !status.Valid() {
		return nil, apperr.Field("status", "must be one of: UNPAID PARTIALLY_PAID PAID")
	}
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, apperr.Field("note", "is required")
	}
	var inv *Invoice
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if inv, err = s.invoices.GetByIDForUpdate(ctx, id); err != nil {
			return err
		}
		if !lifecycle.CanTransitionInvoice(inv.Status, status) {
			return apperr.Rule("cannot change invoice status from %s to %s", inv.Status, status)
		}
		before := inv.snapshot()
		inv.Status = status
		inv.StatusNote = &note
		if err := s.invoices.UpdateBalance(ctx, inv); err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionStatusChange, EntityType: entityInvoice, EntityID: inv.ID, Before: before, After: inv.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// -- Reads --

func (s *Service) GetVisit(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Visit, error) {
	scope, err := actor.Scope(auth.VisitsRead, auth.VisitsReadOwn)
	if err != nil {
		return nil, err
	}
	v, err := s.visits.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Owns(scope, v.DentistID) {
		return nil, apperr.NotFound("visit")
	}
	return v, nil
}

func (s *Service) ListVisits(ctx context.Context, actor auth.Actor, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	scope, err := actor.Scope(auth.VisitsRead, auth.VisitsReadOwn)
	if err != nil {
		return nil, 0, err
	}
	if scope != nil {
		f.DentistID = scope
	}
	return s.visits.List(ctx, f, limit, offset)
}

// GetInvoice returns the invoice with its payments, voided ones included.
func (s *Service) GetInvoice(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Invoice, error) {
	scope, err := actor.Scope(auth.InvoicesRead, auth.InvoicesReadOwn)
	if err != nil {
		return nil, err
	}
	inv, err := s.invoices.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Owns(scope, inv.DentistID) {
		return nil, apperr.NotFound("invoice")
	}
	if inv.Payments, err = s.payments.ListByInvoice(ctx, inv.ID); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *Service) ListInvoices(ctx context.Context, actor auth.Actor, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	scope, err := actor.Scope(auth.InvoicesRead, auth.InvoicesReadOwn)
	if err != nil {
		return nil, 0, err
	}
	if scope != nil {
		f.DentistID = scope
	}
	return s.invoices.List(ctx, f, limit, offset)
}

func (s *Service) ListPayments(ctx context.Context, actor auth.Actor, f PaymentFilter, limit, offset int) ([]*Payment, int, error) {
	scope, err := actor.Scope(auth.PaymentsRead, auth.PaymentsReadOwn)
	if err != nil {
		return nil, 0, err
	}
	if scope != nil {
		f.DentistID = scope
	}
	return s.payments.List(ctx, f, limit, offset)
}
