package reports

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository runs the aggregate queries behind the reports. Ranges are
// inclusive on both ends.
type Repository interface {
	// RevenueByDentist sums ACTIVE payments by paid_at, grouped by the
	// invoice's dentist.
	RevenueByDentist(ctx context.Context, from, to time.Time) ([]DentistRevenue, error)
	// Expenses sums quantity * unit cost of IN movements by created_at.
	Expenses(ctx context.Context, from, to time.Time) (int64, error)
	// AppointmentCounts counts appointments starting in the range by dentist
	// and status. A non-nil dentistID restricts the counts to that dentist.
	AppointmentCounts(ctx context.Context, from, to time.Time, dentistID *uuid.UUID) ([]StatusCount, error)
}
