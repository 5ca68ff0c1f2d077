package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/platform/auth"
)

// Doctor maps to the doctor table. Doctors own patients, caregivers and
// questionnaire templates.
type Doctor struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (d *Doctor) Principal() auth.Principal {
	return auth.Principal{ID: d.ID, Type: auth.PrincipalDoctor, Role: d.Role}
}

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	DoctorID  uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	Name      string     `db:"name" json:"name"`
	Gender    *string    `db:"gender" json:"gender,omitempty"`
	BirthDate *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	HeightCm  *float64   `db:"height_cm" json:"height_cm,omitempty"`
	WeightKg  *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// AgeAt returns the patient's age in whole years at t, or 0 when the birth
// date is unknown.
func (p *Patient) AgeAt(t time.Time) int {
	if p.BirthDate == nil {
		return 0
	}
	b := p.BirthDate.UTC()
	t = t.UTC()
	age := t.Year() - b.Year()
	if t.Month() < b.Month() || (t.Month() == b.Month() && t.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Caregiver maps to the caregiver table.
type Caregiver struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DoctorID     uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	PatientID    *uuid.UUID `db:"patient_id" json:"patient_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	Relationship *string    `db:"relationship" json:"relationship,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

type RespondentType string

const (
	RespondentPatient   RespondentType = "patient"
	RespondentCaregiver RespondentType = "caregiver"
)

// Respondent maps to the respondent table. Respondents self-register and
// answer public questionnaires.
type Respondent struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Name         string         `db:"name" json:"name"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Type         RespondentType `db:"respondent_type" json:"type"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

func (r *Respondent) Principal() auth.Principal {
	return auth.Principal{ID: r.ID, Type: auth.PrincipalRespondent, Role: auth.RoleUser}
}

type RegisterDoctorRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role"`
}

type RegisterRespondentRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Password string         `json:"password"`
	Type     RespondentType `json:"type"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by the login endpoints.
type TokenResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Principal   auth.Principal `json:"principal"`
}
