package questionnaire

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound  = errors.New("questionnaire not found")
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid questionnaire")
)

type TemplateRepository interface {
	Create(ctx context.Context, t *Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*Template, error)
	Update(ctx context.Context, t *Template) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Template, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*Template, int, error)
}

// TemplateCache holds recently read templates. *cache.Store[Template]
// satisfies it.
type TemplateCache interface {
	Get(ctx context.Context, id string) (*Template, error)
	Set(ctx context.Context, id string, t *Template) error
	Delete(ctx context.Context, id string) error
}
