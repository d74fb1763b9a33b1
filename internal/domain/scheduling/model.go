package scheduling

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/lifecycle"
)

type Appointment struct {
	ID                 uuid.UUID                     `db:"id" json:"id"`
	PatientID          uuid.UUID                     `db:"patient_id" json:"patient_id"`
	DentistID          uuid.UUID                     `db:"dentist_id" json:"dentist_id"`
	MedicalCaseID      *uuid.UUID                    `db:"medical_case_id" json:"medical_case_id,omitempty"`
	StartTime          time.Time                     `db:"start_time" json:"start_time"`
	EndTime            time.Time                     `db:"end_time" json:"end_time"`
	BasePriceSyp       int64                         `db:"base_price_syp" json:"base_price_syp"`
	Status             lifecycle.AppointmentStatus   `db:"status" json:"status"`
	CancellationReason *lifecycle.CancellationReason `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	Notes              *string                       `db:"notes" json:"notes,omitempty"`
	CreatedBy          *uuid.UUID                    `db:"created_by" json:"created_by,omitempty"`
	CreatedAt          time.Time                     `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time                     `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Back-to-back slots do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type AppointmentInput struct {
	PatientID     uuid.UUID  `json:"patient_id" validate:"required"`
	DentistID     uuid.UUID  `json:"dentist_id"`
	MedicalCaseID *uuid.UUID `json:"medical_case_id"`
	StartTime     time.Time  `json:"start_time" validate:"required"`
	EndTime       time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	BasePriceSyp  int64      `json:"base_price_syp" validate:"gte=0"`
	Notes         *string    `json:"notes" validate:"omitempty,max=2000"`
}

// AppointmentUpdate changes only the fields that are set.
type AppointmentUpdate struct {
	DentistID     *uuid.UUID `json:"dentist_id"`
	MedicalCaseID *uuid.UUID `json:"medical_case_id"`
	StartTime     *time.Time `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	BasePriceSyp  *int64     `json:"base_price_syp" validate:"omitempty,gte=0"`
	Notes         *string    `json:"notes" validate:"omitempty,max=2000"`
}

// StatusChange moves an appointment out of SCHEDULED. The pricing and
// payment fields only apply to COMPLETED.
type StatusChange struct {
	Status             lifecycle.AppointmentStatus  `json:"status" validate:"required,oneof=COMPLETED CANCELLED"`
	CancellationReason lifecycle.CancellationReason `json:"cancellation_reason" validate:"omitempty,oneof=NO_SHOW PATIENT_CANCELLED CLINIC_CANCELLED"`
	DiscountType       lifecycle.DiscountType       `json:"discount_type" validate:"omitempty,oneof=NONE PERCENT FIXED"`
	DiscountValue      decimal.Decimal              `json:"discount_value"`
	PaidAmountSyp      int64                        `json:"paid_amount_syp" validate:"gte=0"`
	PaymentMethod      billing.PaymentMethod        `json:"payment_method" validate:"omitempty,oneof=CASH CARD BANK_TRANSFER"`
	Notes              *string                      `json:"notes" validate:"omitempty,max=2000"`
}

type StatusResult struct {
	Appointment *Appointment     `json:"appointment"`
	Visit       *billing.Visit   `json:"visit,omitempty"`
	Invoice     *billing.Invoice `json:"invoice,omitempty"`
	Payment     *billing.Payment `json:"payment,omitempty"`
}

type Filter struct {
	DentistID *uuid.UUID
	PatientID *uuid.UUID
	Status    lifecycle.AppointmentStatus
	From      *time.Time
	To        *time.Time
}

type snapshot struct {
	PatientID          uuid.UUID                     `json:"patient_id"`
	DentistID          uuid.UUID                     `json:"dentist_id"`
	StartTime          time.Time                     `json:"start_time"`
	EndTime            time.Time                     `json:"end_time"`
	BasePriceSyp       int64                         `json:"base_price_syp"`
	Status             lifecycle.AppointmentStatus   `json:"status"`
	CancellationReason *lifecycle.CancellationReason `json:"cancellation_reason,omitempty"`
}

func (a *Appointment) snapshot() snapshot {
	return snapshot{
		PatientID: a.PatientID, DentistID: a.DentistID, StartTime: a.StartTime, EndTime: a.EndTime,
		BasePriceSyp: a.BasePriceSyp, Status: a.Status, CancellationReason: a.CancellationReason,
	}
}
