package patient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/domain/auditlog"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/validate"
)

const (
	entityPatient = "patient"
	entityCase    = "medical_case"
)

type Service struct {
	tx       db.TxRunner
	patients PatientRepository
	cases    CaseRepository
	audit    auditlog.Recorder
}

func NewService(tx db.TxRunner, patients PatientRepository, cases CaseRepository, audit auditlog.Recorder) *Service {
	return &Service{tx: tx, patients: patients, cases: cases, audit: audit}
}

// -- Patient --

func applyInput(p *Patient, in PatientInput) error {
	p.FullName = strings.TrimSpace(in.FullName)
	if p.FullName == "" {
		return apperr.Field("full_name", "is required")
	}
	p.Phone = strings.TrimSpace(in.Phone)
	if !validate.Phone(p.Phone) {
		return apperr.Field("phone", "must be a valid phone number")
	}
	p.DateOfBirth = nil
	if in.DateOfBirth != nil && *in.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, *in.DateOfBirth)
		if err != nil {
			return apperr.Field("date_of_birth", "must be a YYYY-MM-DD date")
		}
		if dob.After(time.Now()) {
			return apperr.Field("date_of_birth", "must not be in the future")
		}
		p.DateOfBirth = &dob
	}
	if in.Gender != nil && *in.Gender != GenderMale && *in.Gender != GenderFemale {
		return apperr.Field("gender", "must be one of: MALE FEMALE")
	}
	p.Gender = in.Gender
	p.Address = in.Address
	p.Allergies = in.Allergies
	p.Notes = in.Notes
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, actor auth.Actor, in PatientInput) (*Patient, error) {
	p := &Patient{}
	if err := applyInput(p, in); err != nil {
		return nil, err
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.patients.Create(ctx, p); err != nil {
			return fmt.Errorf("create patient: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityPatient, EntityID: p.ID, After: p.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) SearchPatients(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error) {
	return s.patients.Search(ctx, strings.TrimSpace(q), limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, actor auth.Actor, id uuid.UUID, in PatientInput) (*Patient, error) {
	var p *Patient
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.patients.GetByID(ctx, id); err != nil {
			return err
		}
		before := p.snapshot()
		if err := applyInput(p, in); err != nil {
			return err
		}
		if err := s.patients.Update(ctx, p); err != nil {
			return fmt.Errorf("update patient: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionUpdate, EntityType: entityPatient, EntityID: p.ID, Before: before, After: p.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// DeletePatient refuses patients with appointment history; their visits and
// invoices must stay intact.
func (s *Service) DeletePatient(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetByID(ctx, id)
		if err != nil {
			return err
		}
		has, err := s.patients.HasAppointments(ctx, id)
		if err != nil {
			return err
		}
		if has {
			return apperr.Rule("patient has appointments and cannot be deleted")
		}
		if err := s.patients.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete patient: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionDelete, EntityType: entityPatient, EntityID: id, Before: p.snapshot(),
		})
	})
}

// -- Medical Case --

func (s *Service) CreateCase(ctx context.Context, actor auth.Actor, patientID uuid.UUID, in CaseInput) (*MedicalCase, error) {
	m := &MedicalCase{PatientID: patientID, Title: strings.TrimSpace(in.Title), Description: in.Description, Status: in.Status}
	if m.Title == "" {
		return nil, apperr.Field("title", "is required")
	}
	if m.Status == "" {
		m.Status = CaseOpen
	}
	if m.Status != CaseOpen && m.Status != CaseClosed {
		return nil, apperr.Field("status", "must be one of: OPEN CLOSED")
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, patientID); err != nil {
			return err
		}
		if err := s.cases.Create(ctx, m); err != nil {
			return fmt.Errorf("create medical case: %w", err)
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: auditlog.ActionCreate, EntityType: entityCase, EntityID: m.ID, After: m.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*MedicalCase, error) {
	return s.cases.GetByID(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalCase, int, error) {
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.cases.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) UpdateCase(ctx context.Context, actor auth.Actor, id uuid.UUID, in CaseUpdate) (*MedicalCase, error) {
	var m *MedicalCase
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		var err error
		if m, err = s.cases.GetByID(ctx, id); err != nil {
			return err
		}
		before := m.snapshot()
		if in.Title != nil {
			if m.Title = strings.TrimSpace(*in.Title); m.Title == "" {
				return apperr.Field("title", "must not be empty")
			}
		}
		if in.Description != nil {
			m.Description = in.Description
		}
		if in.Status != "" {
			if in.Status != CaseOpen && in.Status != CaseClosed {
				return apperr.Field("status", "must be one of: OPEN CLOSED")
			}
			m.Status = in.Status
		}
		if err := s.cases.Update(ctx, m); err != nil {
			return fmt.Errorf("update medical case: %w", err)
		}
		action := auditlog.ActionUpdate
		if before.Status != m.Status {
			action = auditlog.ActionStatusChange
		}
		return s.audit.Record(ctx, actor, auditlog.Entry{
			Action: action, EntityType: entityCase, EntityID: m.ID, Before: before, After: m.snapshot(),
		})
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CaseForPatient loads caseID and checks it belongs to patientID.
func (s *Service) CaseForPatient(ctx context.Context, caseID, patientID uuid.UUID) (*MedicalCase, error) {
	m, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if m.PatientID != patientID {
		return nil, apperr.Rule("medical case does not belong to this patient")
	}
	return m, nil
}
