package questionnaire

import (
	"time"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/domain/scoring"
)

// Template is a questionnaire authored by a doctor. The embedded Definition
// is stored as JSONB and serialized inline as "questions" and
// "result_tiers".
type Template struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DoctorID    uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	IsPublic    bool      `db:"is_public" json:"is_public"`
	scoring.Definition
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Summary is the listing view of a template.
type Summary struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Title         string    `json:"title"`
	Description   *string   `json:"description,omitempty"`
	IsPublic      bool      `json:"is_public"`
	QuestionCount int       `json:"question_count"`
	TierCount     int       `json:"tier_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (t *Template) Summary() Summary {
	return Summary{
		ID:            t.ID,
		DoctorID:      t.DoctorID,
		Title:         t.Title,
		Description:   t.Description,
		IsPublic:      t.IsPublic,
		QuestionCount: len(t.Questions),
		TierCount:     len(t.Tiers),
		UpdatedAt:     t.UpdatedAt,
	}
}

func summaries(items []*Template) []Summary {
	out := make([]Summary, 0, len(items))
	for _, t := range items {
		out = append(out, t.Summary())
	}
	return out
}
