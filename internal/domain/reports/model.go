package reports

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/clinic/clinic/internal/domain/lifecycle"
)

// Financial is the revenue, expense and profit-share report for a period.
// Clinic-wide totals are omitted for dentist callers.
type Financial struct {
	From         time.Time    `json:"from"`
	To           time.Time    `json:"to"`
	RevenueSyp   *int64       `json:"revenue_syp,omitempty"`
	ExpensesSyp  *int64       `json:"expenses_syp,omitempty"`
	NetProfitSyp *int64       `json:"net_profit_syp,omitempty"`
	Dentists     []DentistRow `json:"dentists"`
}

// DentistRow is one dentist's share of the period. NetProfitSyp is the
// revenue collected on the dentist's invoices; inventory expenses are only
// subtracted clinic-wide.
type DentistRow struct {
	DentistID       uuid.UUID       `json:"dentist_id"`
	DentistName     string          `json:"dentist_name"`
	RevenueSyp      int64           `json:"revenue_syp"`
	NetProfitSyp    int64           `json:"net_profit_syp"`
	SharePercentage decimal.Decimal `json:"share_percentage"`
	ShareAmountSyp  int64           `json:"share_amount_syp"`
}

// DentistRevenue is collected revenue attributed to one dentist.
type DentistRevenue struct {
	DentistID  uuid.UUID
	RevenueSyp int64
}

// StatusCount is the number of appointments of one dentist in one status.
type StatusCount struct {
	DentistID uuid.UUID
	Status    lifecycle.AppointmentStatus
	Count     int
}

type Appointments struct {
	From      time.Time                           `json:"from"`
	To        time.Time                           `json:"to"`
	Total     int                                 `json:"total"`
	ByStatus  map[lifecycle.AppointmentStatus]int `json:"by_status"`
	ByDentist []DentistAppointments               `json:"by_dentist"`
}

type DentistAppointments struct {
	DentistID   uuid.UUID                           `json:"dentist_id"`
	DentistName string                              `json:"dentist_name"`
	Total       int                                 `json:"total"`
	ByStatus    map[lifecycle.AppointmentStatus]int `json:"by_status"`
}
