package calorie

import (
	"time"

	"github.com/google/uuid"
)

// Record is a calculation snapshot for a patient. It maps to the
// calorie_record table.
type Record struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	DoctorID  *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	Input     Input      `json:"input"`
	Result    Result     `json:"result"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
