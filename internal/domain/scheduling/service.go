package scheduling

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/domain/billing"
	"github.com/clinic/clinic/internal/domain/identity"
	"github.com/clinic/clinic/internal/domain/lifecycle"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
)

const entityAppointment = "appointment"

type DentistDirectory interface {
	ActiveDentist(ctx context.Context, id uuid.UUID, lock bool) (*identity.User, error)
}

type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	CaseForPatient(ctx context.Context, caseID, patientID uuid.UUID) (*patient.MedicalCase, error)
}

type VisitCompleter interface {
	CompleteVisit(ctx context.Context, actor auth.Actor, in billing.Completion) (*billing.CompletionResult, error)
}

type Service struct {
	tx           db.TxRunner
	appointments AppointmentRepository
	dentists     DentistDirectory
	patients     PatientDirectory
	billing      VisitCompleter
	audit        auditlog.Recorder
}

func NewService(tx db.TxRunner, appts AppointmentRepository, dentists DentistDirectory, patients PatientDirectory, bill VisitCompleter, audit auditlog.Recorder) *Service {
	return &Service{tx: tx, appointments: appts, dentists: dentists, patients: patients, billing: bill, audit: audit}
}

var errSlotTaken = apperr.Rule("dentist already has an appointment in this time slot")

// checkSlot locks the dentist row and rejects overlapping bookings. The
// lock serializes concurrent bookings for one dentist, so the overlap query
// and the following insert see a consistent schedule.
func (s *Service) checkSlot(ctx context.Context, a *Appointment, exclude *uuid.UUID) error {
	if _, err := s.dentists.ActiveDentist(ctx, a.DentistID, true); err != nil {
		return err
	}
	clashes, err := s.appointments.FindOverlapping(ctx, a.DentistID, a.StartTime, a.EndTime, exclude)
	if err != nil {
		return fmt.Errorf("check overlap: %w", err)
	}
	if len(clashes) > 0 {
		return errSlotTaken
	}
	return nil
}

func (s *Service) checkCase(ctx context.Context, a *Appointment) error {
	if a.MedicalCaseID == nil {
		return nil
	}
	_, err := s.patients.CaseForPatient(ctx, *a.MedicalCaseID, a.PatientID)
	return err
}

func (s *Service) CreateAppointment(ctx context.Context, actor auth.Actor, in AppointmentInput) (*Appointment, error) {
	scope, err := actor.Scope(auth.AppointmentsWrite, auth.AppointmentsWriteOwn)
	if err != nil {
		return nil, err
	}
	if in.DentistID == uuid.Nil && scope != nil {
		in.DentistID = *scope
	}
	if in.DentistID == uuid.Nil {
		return nil, apperr.Field("dentist_id", "is required")
	}
	if !auth.Owns(scope, in.DentistID) {
		return nil, apperr.Forbidden("dentists may only book their own appointments")
	}
	if in.PatientID == uuid.Nil {
		return nil, apperr.Field("patient_id", "is required")
	}
	if !in.EndTime.After(in.StartTime) {
		return nil, apperr.Field("end_time", "must be after start_time")
	}
	if in.BasePriceSyp < 0 {
		return nil, apperr.Field("base_price_syp", "must not be negative")
	}

	a := &Appointment{
		PatientID:     in.PatientID,
		DentistID:     in.DentistID,
		MedicalCaseID: in.MedicalCaseID,
		StartTime:     in.StartTime,
		EndTime:       in.EndTime,
		BasePriceSyp:  in.BasePriceSyp,
		Status:        lifecycle.AppointmentScheduled,
		Notes:         in.Notes,
	}
	if !actor.IsSystem() {
		id := actor.UserID
		a.CreatedBy = &id
	}
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetPatient(ctx, a.PatientID); err != nil {
			return err
		}
		if err := s.checkCase(ctx, a); err != nil {
			return err
		}
		if err := s.checkSlot(ctx, a, nil); err != nil {
			return err
		}
		if err := s.appointments.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityAppointment, EntityID: a.ID, After: a.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// loadForWrite locks the appointment and hides rows outside the caller's
// scope as not found.
func (s *Service) loadForWrite(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, *uuid.UUID, error) {
	scope, err := actor.Scope(auth.AppointmentsWrite, auth.AppointmentsWriteOwn)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.appointments.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !auth.Owns(scope, a.DentistID) {
		return nil, nil, apperr.NotFound("appointment")
	}
	return a, scope, nil
}

func (s *Service) UpdateAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID, in AppointmentUpdate) (*Appointment, error) {
	var a *Appointment
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var scope *uuid.UUID
		var err error
		if a, scope, err = s.loadForWrite(ctx, actor, id); err != nil {
			return err
		}
		if a.Status.Terminal() {
			return apperr.Rule("cannot edit a %s appointment", a.Status)
		}
		before := a.snapshot()
		if in.DentistID != nil {
			if !auth.Owns(scope, *in.DentistID) {
				return apperr.Forbidden("dentists may only book their own appointments")
			}
			a.DentistID = *in.DentistID
		}
		if in.StartTime != nil {
			a.StartTime = *in.StartTime
		}
		if in.EndTime != nil {
			a.EndTime = *in.EndTime
		}
		if in.BasePriceSyp != nil {
			if *in.BasePriceSyp < 0 {
				return apperr.Field("base_price_syp", "must not be negative")
			}
			a.BasePriceSyp = *in.BasePriceSyp
		}
		if in.MedicalCaseID != nil {
			a.MedicalCaseID = in.MedicalCaseID
		}
		if in.Notes != nil {
			a.Notes = in.Notes
		}
		if !a.EndTime.After(a.StartTime) {
			return apperr.Field("end_time", "must be after start_time")
		}
		if err := s.checkCase(ctx, a); err != nil {
			return err
		}
		if err := s.checkSlot(ctx, a, &a.ID); err != nil {
			return err
		}
		if err := s.appointments.Update(ctx, a); err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionUpdate, EntityType: entityAppointment, EntityID: a.ID, Before: before, After: a.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ChangeAppointmentStatus cancels or completes a scheduled appointment.
// Completing it creates the visit, the invoice and an optional payment in
// the same transaction.
func (s *Service) ChangeAppointmentStatus(ctx context.Context, actor auth.Actor, id uuid.UUID, in StatusChange) (*StatusResult, error) {
	switch in.Status {
	case lifecycle.AppointmentCancelled:
		if !in.CancellationReason.Valid() {
			return nil, apperr.Field("cancellation_reason", "must be one of: NO_SHOW PATIENT_CANCELLED CLINIC_CANCELLED")
		}
	case lifecycle.AppointmentCompleted:
		if in.PaidAmountSyp < 0 {
			return nil, apperr.Field("paid_amount_syp", "must not be negative")
		}
		if in.PaidAmountSyp > 0 && !actor.Can(auth.PaymentsWrite) {
			return nil, apperr.Forbidden("required permission: " + string(auth.PaymentsWrite))
		}
	default:
		if !in.Status.Valid() {
			return nil, apperr.Field("status", "must be one of: COMPLETED CANCELLED")
		}
	}

	res := &StatusResult{}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		a, _, err := s.loadForWrite(ctx, actor, id)
		if err != nil {
			return err
		}
		if !lifecycle.CanTransitionAppointment(a.Status, in.Status) {
			return apperr.Rule("cannot change appointment status from %s to %s", a.Status, in.Status)
		}
		res.Appointment = a

		var completion billing.Completion
		if in.Status == lifecycle.AppointmentCompleted {
			_, final, err := lifecycle.FinalPrice(a.BasePriceSyp, in.DiscountType, in.DiscountValue)
			if err != nil {
				return err
			}
			if in.PaidAmountSyp > final {
				return apperr.Rule("paid amount %d SYP exceeds the final price of %d SYP", in.PaidAmountSyp, final)
			}
			completion = billing.Completion{
				AppointmentID: a.ID,
				PatientID:     a.PatientID,
				DentistID:     a.DentistID,
				BasePriceSyp:  a.BasePriceSyp,
				DiscountType:  in.DiscountType,
				DiscountValue: in.DiscountValue,
				PaidAmountSyp: in.PaidAmountSyp,
				PaymentMethod: in.PaymentMethod,
				Notes:         in.Notes,
			}
		}

		before := a.snapshot()
		a.Status = in.Status
		if in.Status == lifecycle.AppointmentCancelled {
			reason := in.CancellationReason
			a.CancellationReason = &reason
		}
		if err := s.appointments.UpdateStatus(ctx, a); err != nil {
			return fmt.Errorf("update appointment status: %w", err)
		}
		if err := s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionStatusChange, EntityType: entityAppointment, EntityID: a.ID, Before: before, After: a.snapshot(),
		}); err != nil {
			return err
		}
		if in.Status != lifecycle.AppointmentCompleted {
			return nil
		}

		done, err := s.billing.CompleteVisit(ctx, actor, completion)
		if err != nil {
			return err
		}
		res.Visit, res.Invoice, res.Payment = done.Visit, done.Invoice, done.Payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) GetAppointment(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	scope, err := actor.Scope(auth.AppointmentsRead, auth.AppointmentsReadOwn)
	if err != nil {
		return nil, err
	}
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !auth.Owns(scope, a.DentistID) {
		return nil, apperr.NotFound("appointment")
	}
	return a, nil
}

func (s *Service) ListAppointments(ctx context.Context, actor auth.Actor, f Filter, limit, offset int) ([]*Appointment, int, error) {
	scope, err := actor.Scope(auth.AppointmentsRead, auth.AppointmentsReadOwn)
	if err != nil {
		return nil, 0, err
	}
	if scope != nil {
		f.DentistID = scope
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, 0, apperr.Field("to", "must not be before from")
	}
	return s.appointments.List(ctx, f, limit, offset)
}
