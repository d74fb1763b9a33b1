package patient

import (
	"context"

	"github.com/google/uuid"
)

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Search matches q against name or phone; an empty q lists everyone.
	Search(ctx context.Context, q string, limit, offset int) ([]*Patient, int, error)
	HasAppointments(ctx context.Context, id uuid.UUID) (bool, error)
}

type CaseRepository interface {
	Create(ctx context.Context, m *MedicalCase) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalCase, error)
	Update(ctx context.Context, m *MedicalCase) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*MedicalCase, int, error)
}
