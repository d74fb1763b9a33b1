package billing

import (
	"context"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/auditlog/auditlogtest"
	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/pkg/pagination"
)

// -- Mock Repositories --

type mockVisitRepo struct {
	visits map[uuid.UUID]*Visit
}

func (m *mockVisitRepo) Create(_ context.Context, v *Visit) error {
	for _, existing := range m.visits {
		if existing.AppointmentID == v.AppointmentID {
			return apperr.Rule("visit for this appointment already exists")
		}
	}
	v.ID = uuid.New()
	v.CreatedAt = time.Now()
	cp := *v
	m.visits[v.ID] = &cp
	return nil
}

func (m *mockVisitRepo) GetByID(_ context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := m.visits[id]
	if !ok {
		return nil, apperr.NotFound("visit")
	}
	cp := *v
	return &cp, nil
}

func (m *mockVisitRepo) List(_ context.Context, f VisitFilter, limit, offset int) ([]*Visit, int, error) {
	var out []*Visit
	for _, v := range m.visits {
		if f.DentistID != nil && v.DentistID != *f.DentistID {
			continue
		}
		if f.PatientID != nil && v.PatientID != *f.PatientID {
			continue
		}
		out = append(out, v)
	}
	return pagination.Window(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

type mockInvoiceRepo struct {
	invoices map[uuid.UUID]*Invoice
	locks    int
}

func (m *mockInvoiceRepo) Create(_ context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, apperr.NotFound("invoice")
	}
	cp := *inv
	return &cp, nil
}

func (m *mockInvoiceRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	m.locks++
	return m.GetByID(ctx, id)
}

func (m *mockInvoiceRepo) UpdateBalance(_ context.Context, inv *Invoice) error {
	if _, ok := m.invoices[inv.ID]; !ok {
		return apperr.NotFound("invoice")
	}
	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}

func (m *mockInvoiceRepo) List(_ context.Context, f InvoiceFilter, limit, offset int) ([]*Invoice, int, error) {
	var out []*Invoice
	for _, inv := range m.invoices {
		if f.DentistID != nil && inv.DentistID != *f.DentistID {
			continue
		}
		if f.PatientID != nil && inv.PatientID != *f.PatientID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, inv)
	}
	return pagination.Window(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

type mockPaymentRepo struct {
	payments map[uuid.UUID]*Payment
	invoices *mockInvoiceRepo
}

func (m *mockPaymentRepo) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment")
	}
	cp := *p
	return &cp, nil
}

func (m *mockPaymentRepo) MarkVoided(_ context.Context, p *Payment) error {
	stored, ok := m.payments[p.ID]
	if !ok || stored.Status != PaymentActive {
		return apperr.NotFound("active payment")
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) SumActive(_ context.Context, invoiceID uuid.UUID) (int64, error) {
	var sum int64
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID && p.Status == PaymentActive {
			sum += p.AmountSyp
		}
	}
	return sum, nil
}

func (m *mockPaymentRepo) ListByInvoice(_ context.Context, invoiceID uuid.UUID) ([]*Payment, error) {
	var out []*Payment
	for _, p := range m.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

func (m *mockPaymentRepo) List(_ context.Context, f PaymentFilter, limit, offset int) ([]*Payment, int, error) {
	var out []*Payment
	for _, p := range m.payments {
		if f.InvoiceID != nil && p.InvoiceID != *f.InvoiceID {
			continue
		}
		if f.DentistID != nil {
			inv := m.invoices.invoices[p.InvoiceID]
			if inv == nil || inv.DentistID != *f.DentistID {
				continue
			}
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		out = append(out, p)
	}
	return pagination.Window(out, pagination.Params{Limit: limit, Offset: offset}), len(out), nil
}

type fixture struct {
	svc      *Service
	visits   *mockVisitRepo
	invoices *mockInvoiceRepo
	payments *mockPaymentRepo
	audit    *auditlogtest.Memory
}

func newFixture() *fixture {
	f := &fixture{
		visits:   &mockVisitRepo{visits: make(map[uuid.UUID]*Visit)},
		invoices: &mockInvoiceRepo{invoices: make(map[uuid.UUID]*Invoice)},
		audit:    &auditlogtest.Memory{},
	}
	f.payments = &mockPaymentRepo{payments: make(map[uuid.UUID]*Payment), invoices: f.invoices}
	tx := db.TxFunc(func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) })
	f.svc = NewService(tx, f.visits, f.invoices, f.payments, f.audit)
	return f
}

var (
	manager   = auth.Actor{UserID: uuid.New(), Username: "manager", Role: auth.RoleManager}
	dentistA  = auth.Actor{UserID: uuid.New(), Username: "dr.a", Role: auth.RoleDentist}
	dentistB  = auth.Actor{UserID: uuid.New(), Username: "dr.b", Role: auth.RoleDentist}
	patientID = uuid.New()
)

// invoiceOf creates a visit with no discount and returns its invoice.
func (f *fixture) invoiceOf(t *testing.T, dentist uuid.UUID, total int64) *Invoice {
	t.Helper()
	res, err := f.svc.CompleteVisit(context.Background(), manager, Completion{
		AppointmentID: uuid.New(), PatientID: patientID, DentistID: dentist, BasePriceSyp: total,
	})
	if err != nil {
		t.Fatalf("CompleteVisit() error: %v", err)
	}
	return res.Invoice
}

// assertInvariant checks paid == sum(active) and status == derive(total, paid).
func (f *fixture) assertInvariant(t *testing.T, id uuid.UUID) *Invoice {
	t.Helper()
	inv := f.invoices.invoices[id]
	sum, _ := f.payments.SumActive(context.Background(), id)
	if inv.PaidSyp != sum {
		t.Errorf("paid %d != sum of active payments %d", inv.PaidSyp, sum)
	}
	if want := lifecycle.DeriveInvoiceStatus(inv.TotalSyp, inv.PaidSyp); inv.Status != want {
		t.Errorf("status %s != derived %s", inv.Status, want)
	}
	return inv
}

// -- CompleteVisit --

func TestCompleteVisit_PercentDiscountPartialPayment(t *testing.T) {
	f := newFixture()
	res, err := f.svc.CompleteVisit(context.Background(), manager, Completion{
		AppointmentID: uuid.New(),
		PatientID:     patientID,
		DentistID:     dentistA.UserID,
		BasePriceSyp:  100000,
		DiscountType:  lifecycle.DiscountPercent,
		DiscountValue: decimal.NewFromInt(10),
		PaidAmountSyp: 80000,
		PaymentMethod: MethodCash,
	})
	if err != nil {
		t.Fatalf("CompleteVisit() error: %v", err)
	}
	if res.Visit.FinalPriceSyp != 90000 || res.Visit.DiscountSyp != 10000 {
		t.Errorf("unexpected visit %+v", res.Visit)
	}
	inv := f.assertInvariant(t, res.Invoice.ID)
	if inv.TotalSyp != 90000 || inv.PaidSyp != 80000 || inv.Status != lifecycle.InvoicePartiallyPaid {
		t.Errorf("unexpected invoice %+v", inv)
	}
	if res.Payment == nil || res.Payment.AmountSyp != 80000 || res.Payment.Status != PaymentActive {
		t.Errorf("unexpected payment %+v", res.Payment)
	}
	want := []string{"CREATE:visit", "CREATE:invoice", "CREATE:payment", "STATUS_CHANGE:invoice"}
	got := f.audit.Actions()
	if len(got) != len(want) {
		t.Fatalf("audit = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("audit[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestCompleteVisit_NoPayment(t *testing.T) {
	f := newFixture()
	res, err := f.svc.CompleteVisit(context.Background(), manager, Completion{
		AppointmentID: uuid.New(), PatientID: patientID, DentistID: dentistA.UserID,
		BasePriceSyp: 20000, DiscountType: lifecycle.DiscountFixed, DiscountValue: decimal.NewFromInt(25000),
	})
	if err != nil {
		t.Fatalf("CompleteVisit() error: %v", err)
	}
	if res.Visit.FinalPriceSyp != 0 || res.Invoice.TotalSyp != 0 {
		t.Errorf("fixed discount above base should clamp to 0, got %+v", res.Visit)
	}
	if res.Payment != nil {
		t.Error("no payment expected")
	}
	if len(f.visits.visits) != 1 || len(f.invoices.invoices) != 1 {
		t.Error("expected exactly one visit and one invoice")
	}
}

func TestCompleteVisit_OverpaymentRejectedBeforeWrites(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CompleteVisit(context.Background(), manager, Completion{
		AppointmentID: uuid.New(), PatientID: patientID, DentistID: dentistA.UserID,
		BasePriceSyp: 50000, PaidAmountSyp: 60000,
	})
	if !apperr.IsRule(err) {
		t.Fatalf("expected rule error, got %v", err)
	}
	if len(f.visits.visits) != 0 || len(f.invoices.invoices) != 0 || len(f.audit.Entries) != 0 {
		t.Error("no writes expected after a rejected completion")
	}
}

func TestCompleteVisit_InvalidDiscount(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CompleteVisit(context.Background(), manager, Completion{
		AppointmentID: uuid.New(), BasePriceSyp: 50000,
		DiscountType: lifecycle.DiscountPercent, DiscountValue: decimal.NewFromInt(150),
	})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Payments --

func TestPayAndVoid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.invoiceOf(t, dentistA.UserID, 50000)
	if inv.Status != lifecycle.InvoiceUnpaid {
		t.Fatalf("expected UNPAID, got %s", inv.Status)
	}

	p, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 50000, Method: MethodCard})
	if err != nil {
		t.Fatalf("CreatePayment() error: %v", err)
	}
	if got := f.assertInvariant(t, inv.ID); got.Status != lifecycle.InvoicePaid || got.PaidSyp != 50000 {
		t.Errorf("expected PAID 50000, got %+v", got)
	}

	voided, err := f.svc.VoidPayment(ctx, manager, p.ID, "card charge reversed")
	if err != nil {
		t.Fatalf("VoidPayment() error: %v", err)
	}
	if voided.Status != PaymentVoided || voided.VoidedBy == nil || *voided.VoidedBy != manager.UserID || voided.VoidedAt == nil {
		t.Errorf("unexpected voided payment %+v", voided)
	}
	if got := f.assertInvariant(t, inv.ID); got.Status != lifecycle.InvoiceUnpaid || got.PaidSyp != 0 {
		t.Errorf("expected UNPAID 0, got %+v", got)
	}

	if _, err := f.svc.VoidPayment(ctx, manager, p.ID, "again"); !apperr.IsRule(err) {
		t.Errorf("expected rule error voiding twice, got %v", err)
	}
	if f.invoices.locks < 2 {
		t.Errorf("expected the invoice row to be locked, got %d locks", f.invoices.locks)
	}
}

func TestVoid_RecomputesFromActivePayments(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.invoiceOf(t, dentistA.UserID, 90000)
	p1, _ := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 30000, Method: MethodCash})
	_, _ = f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 45000, Method: MethodCash})

	// A stale paid_syp must be corrected by the recompute.
	f.invoices.invoices[inv.ID].PaidSyp = 1

	if _, err := f.svc.VoidPayment(ctx, manager, p1.ID, "duplicate entry"); err != nil {
		t.Fatalf("VoidPayment() error: %v", err)
	}
	got := f.assertInvariant(t, inv.ID)
	if got.PaidSyp != 45000 || got.Status != lifecycle.InvoicePartiallyPaid {
		t.Errorf("expected 45000 PARTIALLY_PAID, got %+v", got)
	}
}

func TestCreatePayment_Rules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.invoiceOf(t, dentistA.UserID, 90000)
	_, _ = f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 80000, Method: MethodCash})

	_, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 10001, Method: MethodCash})
	if !apperr.IsRule(err) {
		t.Fatalf("expected rule error for overpayment, got %v", err)
	}
	if want := "payment of 10001 SYP exceeds the remaining balance of 10000 SYP"; err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}

	if _, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 0, Method: MethodCash}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for zero amount, got %v", err)
	}
	if _, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 5, Method: "CHEQUE"}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error for method, got %v", err)
	}
	if _, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: uuid.New(), AmountSyp: 5, Method: MethodCash}); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}

	_, _ = f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 10000, Method: MethodCash})
	if _, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 1, Method: MethodCash}); !apperr.IsRule(err) {
		t.Errorf("expected rule error for paid invoice, got %v", err)
	}
	f.assertInvariant(t, inv.ID)
}

func TestCreatePayment_HugeAmountRejected(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.invoiceOf(t, dentistA.UserID, 90000)
	if _, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: 10, Method: MethodCash}); err != nil {
		t.Fatalf("CreatePayment() error: %v", err)
	}
	paymentsBefore := len(f.payments.payments)

	_, err := f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: inv.ID, AmountSyp: math.MaxInt64, Method: MethodCash})
	if !apperr.IsRule(err) {
		t.Fatalf("expected rule error, got %v", err)
	}
	if want := "exceeds the remaining balance of 89990 SYP"; !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to mention %q", err.Error(), want)
	}
	if len(f.payments.payments) != paymentsBefore {
		t.Error("rejected payment must not be stored")
	}
	got := f.assertInvariant(t, inv.ID)
	if got.PaidSyp != 10 || got.Status != lifecycle.InvoicePartiallyPaid {
		t.Errorf("invoice changed: paid %d status %s", got.PaidSyp, got.Status)
	}
}

func TestVoidPayment_RequiresReason(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.VoidPayment(context.Background(), manager, uuid.New(), "  "); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

// -- Invoice status override --

func TestUpdateInvoiceStatus(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	inv := f.invoiceOf(t, dentistA.UserID, 40000)

	got, err := f.svc.UpdateInvoiceStatus(ctx, manager, inv.ID, lifecycle.InvoicePaid, "settled in kind")
	if err != nil {
		t.Fatalf("UpdateInvoiceStatus() error: %v", err)
	}
	if got.Status != lifecycle.InvoicePaid || got.StatusNote == nil || *got.StatusNote != "settled in kind" {
		t.Errorf("unexpected invoice %+v", got)
	}
	if _, err := f.svc.UpdateInvoiceStatus(ctx, manager, inv.ID, lifecycle.InvoicePaid, "again"); !apperr.IsRule(err) {
		t.Errorf("same-status change should be rejected, got %v", err)
	}
	if _, err := f.svc.UpdateInvoiceStatus(ctx, manager, inv.ID, lifecycle.InvoiceUnpaid, ""); !apperr.IsValidation(err) {
		t.Errorf("missing note should be rejected, got %v", err)
	}
	if _, err := f.svc.UpdateInvoiceStatus(ctx, manager, inv.ID, "VOID", "x"); !apperr.IsValidation(err) {
		t.Errorf("unknown status should be rejected, got %v", err)
	}
	if last := f.audit.Actions()[len(f.audit.Entries)-1]; last != "STATUS_CHANGE:invoice" {
		t.Errorf("expected status change audit, got %s", last)
	}
}

// -- Reads & scoping --

func TestReads_DentistScoping(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	own := f.invoiceOf(t, dentistA.UserID, 10000)
	other := f.invoiceOf(t, dentistB.UserID, 20000)
	_, _ = f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: own.ID, AmountSyp: 5000, Method: MethodCash})
	_, _ = f.svc.CreatePayment(ctx, manager, PaymentInput{InvoiceID: other.ID, AmountSyp: 5000, Method: MethodCash})

	if _, err := f.svc.GetInvoice(ctx, dentistA, own.ID); err != nil {
		t.Errorf("dentist should read own invoice: %v", err)
	}
	if _, err := f.svc.GetInvoice(ctx, dentistA, other.ID); !apperr.IsNotFound(err) {
		t.Errorf("dentist must not read another dentist's invoice, got %v", err)
	}
	if _, err := f.svc.GetVisit(ctx, dentistA, other.VisitID); !apperr.IsNotFound(err) {
		t.Errorf("dentist must not read another dentist's visit, got %v", err)
	}

	// A dentist asking for someone else's rows still only sees their own.
	_, total, _ := f.svc.ListInvoices(ctx, dentistA, InvoiceFilter{DentistID: &dentistB.UserID}, 20, 0)
	if total != 1 {
		t.Errorf("expected 1 scoped invoice, got %d", total)
	}
	_, total, _ = f.svc.ListPayments(ctx, dentistA, PaymentFilter{}, 20, 0)
	if total != 1 {
		t.Errorf("expected 1 scoped payment, got %d", total)
	}
	_, total, _ = f.svc.ListVisits(ctx, manager, VisitFilter{}, 20, 0)
	if total != 2 {
		t.Errorf("manager should see all visits, got %d", total)
	}

	inv, _ := f.svc.GetInvoice(ctx, manager, own.ID)
	if len(inv.Payments) != 1 {
		t.Errorf("expected invoice payments to be loaded, got %d", len(inv.Payments))
	}
}
