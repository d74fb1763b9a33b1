package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/lifecycle"
)

// Visit records a completed appointment and the price it was billed at.
type Visit struct {
	ID            uuid.UUID              `db:"id" json:"id"`
	AppointmentID uuid.UUID              `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID              `db:"patient_id" json:"patient_id"`
	DentistID     uuid.UUID              `db:"dentist_id" json:"dentist_id"`
	BasePriceSyp  int64                  `db:"base_price_syp" json:"base_price_syp"`
	DiscountType  lifecycle.DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue decimal.Decimal        `db:"discount_value" json:"discount_value"`
	DiscountSyp   int64                  `db:"discount_syp" json:"discount_syp"`
	FinalPriceSyp int64                  `db:"final_price_syp" json:"final_price_syp"`
	Notes         *string                `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time              `db:"created_at" json:"created_at"`
}

type Invoice struct {
	ID         uuid.UUID               `db:"id" json:"id"`
	VisitID    uuid.UUID               `db:"visit_id" json:"visit_id"`
	PatientID  uuid.UUID               `db:"patient_id" json:"patient_id"`
	DentistID  uuid.UUID               `db:"dentist_id" json:"dentist_id"`
	TotalSyp   int64                   `db:"total_syp" json:"total_syp"`
	PaidSyp    int64                   `db:"paid_syp" json:"paid_syp"`
	Status     lifecycle.InvoiceStatus `db:"status" json:"status"`
	StatusNote *string                 `db:"status_note" json:"status_note,omitempty"`
	CreatedAt  time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time               `db:"updated_at" json:"updated_at"`
	Payments   []*Payment              `db:"-" json:"payments,omitempty"`
}

// BalanceSyp is what is still owed on the invoice.
func (i *Invoice) BalanceSyp() int64 {
	if i.PaidSyp >= i.TotalSyp {
		return 0
	}
	return i.TotalSyp - i.PaidSyp
}

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodCard || m == MethodBankTransfer
}

type PaymentStatus string

const (
	PaymentActive PaymentStatus = "ACTIVE"
	PaymentVoided PaymentStatus = "VOIDED"
)

// Payment is never deleted; voiding keeps the row for the audit trail.
type Payment struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	InvoiceID  uuid.UUID     `db:"invoice_id" json:"invoice_id"`
	AmountSyp  int64         `db:"amount_syp" json:"amount_syp"`
	Method     PaymentMethod `db:"method" json:"method"`
	PaidAt     time.Time     `db:"paid_at" json:"paid_at"`
	Status     PaymentStatus `db:"status" json:"status"`
	VoidReason *string       `db:"void_reason" json:"void_reason,omitempty"`
	VoidedAt   *time.Time    `db:"voided_at" json:"voided_at,omitempty"`
	VoidedBy   *uuid.UUID    `db:"voided_by" json:"voided_by,omitempty"`
	Notes      *string       `db:"notes" json:"notes,omitempty"`
	CreatedBy  *uuid.UUID    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Completion is the input scheduling hands over when an appointment is
// marked COMPLETED.
type Completion struct {
	AppointmentID uuid.UUID
	PatientID     uuid.UUID
	DentistID     uuid.UUID
	BasePriceSyp  int64
	DiscountType  lifecycle.DiscountType
	DiscountValue decimal.Decimal
	PaidAmountSyp int64
	PaymentMethod PaymentMethod
	Notes         *string
}

type CompletionResult struct {
	Visit   *Visit   `json:"visit"`
	Invoice *Invoice `json:"invoice"`
	Payment *Payment `json:"payment,omitempty"`
}

type PaymentInput struct {
	InvoiceID uuid.UUID     `json:"invoice_id" validate:"required"`
	AmountSyp int64         `json:"amount_syp" validate:"gt=0"`
	Method    PaymentMethod `json:"method" validate:"required,oneof=CASH CARD BANK_TRANSFER"`
	PaidAt    *time.Time    `json:"paid_at"`
	Notes     *string       `json:"notes" validate:"omitempty,max=1000"`
}

type VoidInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type InvoiceStatusInput struct {
	Status lifecycle.InvoiceStatus `json:"status" validate:"required,oneof=UNPAID PARTIALLY_PAID PAID"`
	Note   string                  `json:"note" validate:"required,max=500"`
}

type VisitFilter struct {
	DentistID *uuid.UUID
	PatientID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type InvoiceFilter struct {
	DentistID *uuid.UUID
	PatientID *uuid.UUID
	Status    lifecycle.InvoiceStatus
}

type PaymentFilter struct {
	InvoiceID *uuid.UUID
	DentistID *uuid.UUID
	Status    PaymentStatus
	Method    PaymentMethod
	From      *time.Time
	To        *time.Time
}

// -- audit snapshots --

type visitSnapshot struct {
	AppointmentID uuid.UUID              `json:"appointment_id"`
	BasePriceSyp  int64                  `json:"base_price_syp"`
	DiscountType  lifecycle.DiscountType `json:"discount_type"`
	DiscountValue decimal.Decimal        `json:"discount_value"`
	FinalPriceSyp int64                  `json:"final_price_syp"`
}

func (v *Visit) snapshot() visitSnapshot {
	return visitSnapshot{
		AppointmentID: v.AppointmentID, BasePriceSyp: v.BasePriceSyp,
		DiscountType: v.DiscountType, DiscountValue: v.DiscountValue, FinalPriceSyp: v.FinalPriceSyp,
	}
}

type invoiceSnapshot struct {
	TotalSyp   int64                   `json:"total_syp"`
	PaidSyp    int64                   `json:"paid_syp"`
	Status     lifecycle.InvoiceStatus `json:"status"`
	StatusNote *string                 `json:"status_note,omitempty"`
}

func (i *Invoice) snapshot() invoiceSnapshot {
	return invoiceSnapshot{TotalSyp: i.TotalSyp, PaidSyp: i.PaidSyp, Status: i.Status, StatusNote: i.StatusNote}
}

type paymentSnapshot struct {
	InvoiceID  uuid.UUID     `json:"invoice_id"`
	AmountSyp  int64         `json:"amount_syp"`
	Method     PaymentMethod `json:"method"`
	Status     PaymentStatus `json:"status"`
	VoidReason *string       `json:"void_reason,omitempty"`
}

func (p *Payment) snapshot() paymentSnapshot {
	return paymentSnapshot{InvoiceID: p.InvoiceID, AmountSyp: p.AmountSyp, Method: p.Method, Status: p.Status, VoidReason: p.VoidReason}
}
