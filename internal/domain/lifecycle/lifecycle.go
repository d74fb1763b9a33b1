// Package lifecycle holds the status enums, the transition tables and the
// pricing rules shared by scheduling and billing.
package lifecycle

import (
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/platform/apperr"
)

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "SCHEDULED"
	AppointmentCompleted AppointmentStatus = "COMPLETED"
	AppointmentCancelled AppointmentStatus = "CANCELLED"
)

type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "UNPAID"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
)

type CancellationReason string

const (
	NoShow           CancellationReason = "NO_SHOW"
	PatientCancelled CancellationReason = "PATIENT_CANCELLED"
	ClinicCancelled  CancellationReason = "CLINIC_CANCELLED"
)

func (r CancellationReason) Valid() bool {
	return r == NoShow || r == PatientCancelled || r == ClinicCancelled
}

type DiscountType string

const (
	DiscountNone    DiscountType = "NONE"
	DiscountPercent DiscountType = "PERCENT"
	DiscountFixed   DiscountType = "FIXED"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentScheduled: {AppointmentCompleted, AppointmentCancelled},
	AppointmentCompleted: {},
	AppointmentCancelled: {},
}

// Every pair of distinct invoice statuses is reachable: a full payment moves
// UNPAID straight to PAID and voiding the only payment moves back.
var invoiceTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceUnpaid:        {InvoicePartiallyPaid, InvoicePaid},
	InvoicePartiallyPaid: {InvoiceUnpaid, InvoicePaid},
	InvoicePaid:          {InvoiceUnpaid, InvoicePartiallyPaid},
}

func (s AppointmentStatus) Valid() bool {
	_, ok := appointmentTransitions[s]
	return ok
}

// Terminal reports whether no further edits or transitions are allowed.
func (s AppointmentStatus) Terminal() bool {
	return s.Valid() && len(appointmentTransitions[s]) == 0
}

func (s InvoiceStatus) Valid() bool {
	_, ok := invoiceTransitions[s]
	return ok
}

func CanTransitionAppointment(from, to AppointmentStatus) bool {
	for _, s := range appointmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func CanTransitionInvoice(from, to InvoiceStatus) bool {
	for _, s := range invoiceTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// DeriveInvoiceStatus computes the status implied by the amounts.
func DeriveInvoiceStatus(totalSyp, paidSyp int64) InvoiceStatus {
	switch {
	case paidSyp <= 0:
		return InvoiceUnpaid
	case paidSyp >= totalSyp:
		return InvoicePaid
	default:
		return InvoicePartiallyPaid
	}
}

var hundred = decimal.NewFromInt(100)

// FinalPrice applies a discount to base and returns the discount amount and
// the resulting price, which is clamped to [0, base].
func FinalPrice(baseSyp int64, t DiscountType, value decimal.Decimal) (discountSyp, finalSyp int64, err error) {
	if baseSyp < 0 {
		return 0, 0, apperr.Field("base_price_syp", "must not be negative")
	}
	switch t {
	case "", DiscountNone:
		return 0, baseSyp, nil
	case DiscountPercent:
		if value.IsNegative() || value.GreaterThan(hundred) {
			return 0, 0, apperr.Field("discount_value", "percent discount must be between 0 and 100")
		}
		// decimal.Round rounds half away from zero, which is half-up for
		// non-negative amounts.
		discountSyp = decimal.NewFromInt(baseSyp).Mul(value).Div(hundred).Round(0).IntPart()
	case DiscountFixed:
		if value.IsNegative() {
			return 0, 0, apperr.Field("discount_value", "fixed discount must not be negative")
		}
		if value.GreaterThanOrEqual(decimal.NewFromInt(baseSyp)) {
			return baseSyp, 0, nil
		}
		discountSyp = value.Round(0).IntPart()
	default:
		return 0, 0, apperr.Field("discount_type", "must be one of NONE PERCENT FIXED")
	}
	if discountSyp > baseSyp {
		discountSyp = baseSyp
	}
	return discountSyp, baseSyp - discountSyp, nil
}
