package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/domain/scoring"
	"github.com/medscreen/medscreen/internal/platform/auth"
	"github.com/medscreen/medscreen/internal/platform/cache"
)

type Service struct {
	templates TemplateRepository
	cache     TemplateCache
	logger    zerolog.Logger
}

func NewService(templates TemplateRepository, logger zerolog.Logger) *Service {
	return &Service{templates: templates, logger: logger}
}

// SetCache enables read-through caching of templates.
func (s *Service) SetCache(c TemplateCache) {
	s.cache = c
}

// ValidateTemplate checks that a template can be scored: a title, at least
// one question, known question kinds, choice questions with distinct
// non-empty options, and well-formed tiers.
func ValidateTemplate(t *Template) error {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalid)
	}
	if len(t.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrInvalid)
	}
	for i, q := range t.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: question %d has no text", scoring.ErrMalformedQuestion, i)
		}
		if !q.Kind.Valid() {
			return fmt.Errorf("%w: question %d has unknown type %q", scoring.ErrMalformedQuestion, i, q.Kind)
		}
		if !q.Kind.HasOptions() {
			continue
		}
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %d needs at least one option", scoring.ErrMalformedQuestion, i)
		}
		// Repeated option texts are kept as authored; scoring matches the first.
		for j, o := range q.Options {
			if strings.TrimSpace(o.Text) == "" {
				return fmt.Errorf("%w: question %d option %d has no text", scoring.ErrMalformedQuestion, i, j)
			}
		}
	}
	return t.Definition.Validate()
}

func canEdit(caller auth.Principal, t *Template) bool {
	return caller.IsAdmin() || (caller.IsDoctor() && caller.ID == t.DoctorID)
}

func canRead(caller auth.Principal, t *Template) bool {
	return t.IsPublic || canEdit(caller, t)
}

func (s *Service) Create(ctx context.Context, caller auth.Principal, t *Template) error {
	if !caller.IsDoctor() {
		return ErrForbidden
	}
	t.DoctorID = caller.ID
	if err := ValidateTemplate(t); err != nil {
		return err
	}
	return s.templates.Create(ctx, t)
}

// load reads a template through the cache. Cache failures are logged and
// fall back to the repository.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*Template, error) {
	if s.cache != nil {
		t, err := s.cache.Get(ctx, id.String())
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn().Err(err).Str("questionnaire_id", id.String()).Msg("template cache read failed")
		}
	}

	t, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, id.String(), t); err != nil {
			s.logger.Warn().Err(err).Str("questionnaire_id", id.String()).Msg("template cache write failed")
		}
	}
	return t, nil
}

func (s *Service) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id.String()); err != nil {
		s.logger.Warn().Err(err).Str("questionnaire_id", id.String()).Msg("template cache invalidation failed")
	}
}

// Get returns a template the caller may read: public templates, the
// caller's own templates, or any template for admins.
func (s *Service) Get(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canRead(caller, t) {
		return nil, ErrForbidden
	}
	return t, nil
}

// GetPublic returns a template only when it is public.
func (s *Service) GetPublic(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsPublic {
		return nil, ErrNotFound
	}
	return t, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Principal, t *Template) error {
	existing, err := s.templates.GetByID(ctx, t.ID)
	if err != nil {
		return err
	}
	if !canEdit(caller, existing) {
		return ErrForbidden
	}
	t.DoctorID = existing.DoctorID
	t.CreatedAt = existing.CreatedAt
	if err := ValidateTemplate(t); err != nil {
		return err
	}
	if err := s.templates.Update(ctx, t); err != nil {
		return err
	}
	s.invalidate(ctx, t.ID)
	return nil
}

func (s *Service) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	existing, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !canEdit(caller, existing) {
		return ErrForbidden
	}
	if err := s.templates.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

// List returns the caller's own templates; admins see every template and
// respondents see the public ones.
func (s *Service) List(ctx context.Context, caller auth.Principal, limit, offset int) ([]*Template, int, error) {
	switch {
	case caller.IsAdmin():
		return s.templates.List(ctx, limit, offset)
	case caller.IsDoctor():
		return s.templates.ListByDoctor(ctx, caller.ID, limit, offset)
	}
	return s.templates.ListPublic(ctx, limit, offset)
}

func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return s.templates.ListPublic(ctx, limit, offset)
}
