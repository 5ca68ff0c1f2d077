package screening

import (
	"time"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/domain/scoring"
)

// Result is a scored questionnaire submission about one subject. Tier is nil
// when the total fell outside every tier of the questionnaire.
type Result struct {
	ID              uuid.UUID            `db:"id" json:"id"`
	QuestionnaireID uuid.UUID            `db:"questionnaire_id" json:"questionnaire_id"`
	DoctorID        *uuid.UUID           `db:"doctor_id" json:"doctor_id,omitempty"`
	SubjectType     identity.SubjectType `db:"subject_type" json:"subject_type"`
	SubjectID       uuid.UUID            `db:"subject_id" json:"subject_id"`
	Answers         []scoring.Answer     `db:"answers" json:"answers"`
	TotalScore      float64              `db:"total_score" json:"total_score"`
	Tier            *scoring.Tier        `db:"tier" json:"tier"`
	Resolved        bool                 `db:"resolved" json:"resolved"`
	CreatedAt       time.Time            `db:"created_at" json:"created_at"`
}

// SubmitRequest carries the answers for one questionnaire. Respondents
// always submit about themselves, so the subject fields are ignored for
// them.
type SubmitRequest struct {
	QuestionnaireID uuid.UUID            `json:"questionnaire_id"`
	SubjectType     identity.SubjectType `json:"subject_type"`
	SubjectID       uuid.UUID            `json:"subject_id"`
	Answers         []scoring.Answer     `json:"answers"`
}
