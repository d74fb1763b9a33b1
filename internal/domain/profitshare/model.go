package profitshare

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Share is the percentage of collected revenue paid out to a dentist.
type Share struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	DentistID  uuid.UUID       `db:"dentist_id" json:"dentist_id"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

type ShareInput struct {
	DentistID  uuid.UUID       `json:"dentist_id" validate:"required"`
	Percentage decimal.Decimal `json:"percentage"`
}

type ShareUpdate struct {
	Percentage decimal.Decimal `json:"percentage"`
}

type shareSnapshot struct {
	DentistID  uuid.UUID `json:"dentist_id"`
	Percentage string    `json:"percentage"`
}

func (s *Share) snapshot() shareSnapshot {
	return shareSnapshot{DentistID: s.DentistID, Percentage: s.Percentage.String()}
}
