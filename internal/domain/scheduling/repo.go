package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// GetByIDForUpdate locks the appointment row for the rest of the transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, a *Appointment) error
	// FindOverlapping returns the dentist's non-cancelled appointments that
	// intersect [start, end), skipping exclude when set.
	FindOverlapping(ctx context.Context, dentistID uuid.UUID, start, end time.Time, exclude *uuid.UUID) ([]*Appointment, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
}
