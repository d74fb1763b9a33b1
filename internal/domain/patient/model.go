package patient

import (
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

type Gender string

const (
	GenderMale   Gender = "MALE"
	GenderFemale Gender = "FEMALE"
)

type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FullName    string     `db:"full_name" json:"full_name"`
	Phone       string     `db:"phone" json:"phone"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *Gender    `db:"gender" json:"gender,omitempty"`
	Address     *string    `db:"address" json:"address,omitempty"`
	Allergies   *string    `db:"allergies" json:"allergies,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

type CaseStatus string

const (
	CaseOpen   CaseStatus = "OPEN"
	CaseClosed CaseStatus = "CLOSED"
)

// MedicalCase groups a patient's treatment, e.g. a root canal spanning
// several appointments.
type MedicalCase struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	Title       string     `db:"title" json:"title"`
	Description *string    `db:"description" json:"description,omitempty"`
	Status      CaseStatus `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// PatientInput is the payload for create and full update.
type PatientInput struct {
	FullName    string  `json:"full_name" validate:"required,max=200"`
	Phone       string  `json:"phone" validate:"required,phone"`
	DateOfBirth *string `json:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
	Gender      *Gender `json:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
	Allergies   *string `json:"allergies" validate:"omitempty,max=2000"`
	Notes       *string `json:"notes" validate:"omitempty,max=5000"`
}

type CaseInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Status      CaseStatus `json:"status" validate:"omitempty,oneof=OPEN CLOSED"`
}

// CaseUpdate changes only the fields that are set.
type CaseUpdate struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Status      CaseStatus `json:"status" validate:"omitempty,oneof=OPEN CLOSED"`
}

type patientSnapshot struct {
	FullName string  `json:"full_name"`
	Phone    string  `json:"phone"`
	Gender   *Gender `json:"gender,omitempty"`
}

func (p *Patient) snapshot() patientSnapshot {
	return patientSnapshot{FullName: p.FullName, Phone: p.Phone, Gender: p.Gender}
}

type caseSnapshot struct {
	PatientID uuid.UUID  `json:"patient_id"`
	Title     string     `json:"title"`
	Status    CaseStatus `json:"status"`
}

func (m *MedicalCase) snapshot() caseSnapshot {
	return caseSnapshot{PatientID: m.PatientID, Title: m.Title, Status: m.Status}
}
