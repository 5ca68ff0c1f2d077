package screening

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/domain/identity"
)

var (
	ErrNotFound  = errors.New("screening result not found")
	ErrForbidden = errors.New("access to screening result denied")
	ErrInvalid   = errors.New("invalid screening request")
)

type ResultRepository interface {
	Create(ctx context.Context, r *Result) error
	GetByID(ctx context.Context, id uuid.UUID) (*Result, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySubject(ctx context.Context, subject identity.SubjectType, subjectID uuid.UUID, limit, offset int) ([]*Result, int, error)
	ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*Result, int, error)
}
