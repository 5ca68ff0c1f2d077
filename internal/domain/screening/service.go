package screening

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/domain/questionnaire"
	"github.com/medscreen/medscreen/internal/domain/scoring"
	"github.com/medscreen/medscreen/internal/platform/auth"
)

// TemplateReader loads a questionnaire the caller is allowed to read.
type TemplateReader interface {
	Get(ctx context.Context, caller auth.Principal, id uuid.UUID) (*questionnaire.Template, error)
}

// SubjectAuthorizer decides whether the caller may record or read results
// about a subject.
type SubjectAuthorizer interface {
	AuthorizeSubject(ctx context.Context, caller auth.Principal, subject identity.SubjectType, id uuid.UUID) error
}

// Counter receives a count per scored submission.
type Counter interface {
	Inc(name string, labelPairs ...string)
}

type Service struct {
	results   ResultRepository
	templates TemplateReader
	subjects  SubjectAuthorizer
	metrics   Counter
	logger    zerolog.Logger
}

func NewService(results ResultRepository, templates TemplateReader, subjects SubjectAuthorizer, logger zerolog.Logger) *Service {
	return &Service{results: results, templates: templates, subjects: subjects, logger: logger}
}

// SetMetrics enables the screening_submissions_total counter.
func (s *Service) SetMetrics(c Counter) {
	s.metrics = c
}

// Submit scores the answers against the questionnaire and stores the
// outcome. Structural scoring errors abort before anything is written. A
// total outside every tier is still stored, with Resolved false.
func (s *Service) Submit(ctx context.Context, caller auth.Principal, req SubmitRequest) (*Result, error) {
	if caller.Type == auth.PrincipalRespondent {
		req.SubjectType = identity.SubjectRespondent
		req.SubjectID = caller.ID
	}
	if req.QuestionnaireID == uuid.Nil {
		return nil, fmt.Errorf("%w: questionnaire_id is required", ErrInvalid)
	}
	if req.SubjectType == "" || req.SubjectID == uuid.Nil {
		return nil, fmt.Errorf("%w: subject_type and subject_id are required", ErrInvalid)
	}
	if err := s.subjects.AuthorizeSubject(ctx, caller, req.SubjectType, req.SubjectID); err != nil {
		return nil, err
	}

	tpl, err := s.templates.Get(ctx, caller, req.QuestionnaireID)
	if err != nil {
		return nil, err
	}
	outcome, err := scoring.Score(tpl.Definition, req.Answers)
	if err != nil {
		return nil, err
	}

	res := &Result{
		QuestionnaireID: tpl.ID,
		SubjectType:     req.SubjectType,
		SubjectID:       req.SubjectID,
		Answers:         req.Answers,
		TotalScore:      outcome.TotalScore,
		Tier:            outcome.Tier,
		Resolved:        outcome.Resolved(),
	}
	// Results follow the doctor who administered them, or the questionnaire
	// author for self-submitted ones.
	doctorID := tpl.DoctorID
	if caller.IsDoctor() {
		doctorID = caller.ID
	}
	res.DoctorID = &doctorID
	if res.Answers == nil {
		res.Answers = []scoring.Answer{}
	}

	if !res.Resolved {
		s.logger.Warn().
			Str("questionnaire_id", tpl.ID.String()).
			Float64("total_score", outcome.TotalScore).
			Int("tiers", len(tpl.Tiers)).
			Msg("screening score matched no result tier")
	}

	if err := s.results.Create(ctx, res); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.Inc("screening_submissions_total",
			"subject_type", string(res.SubjectType),
			"resolved", strconv.FormatBool(res.Resolved))
	}
	return res, nil
}

func canAccess(caller auth.Principal, r *Result) bool {
	switch {
	case caller.IsAdmin():
		return true
	case caller.IsDoctor():
		return r.DoctorID != nil && *r.DoctorID == caller.ID
	}
	return r.SubjectType == identity.SubjectRespondent && r.SubjectID == caller.ID
}

func (s *Service) Get(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Result, error) {
	r, err := s.results.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, r) {
		return nil, ErrForbidden
	}
	return r, nil
}

// Delete removes a result. Only the responsible doctor or an admin may
// delete; respondents cannot remove their own history.
func (s *Service) Delete(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	r, err := s.results.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !caller.IsDoctor() || !canAccess(caller, r) {
		return ErrForbidden
	}
	return s.results.Delete(ctx, id)
}

func (s *Service) ListBySubject(ctx context.Context, caller auth.Principal, subject identity.SubjectType, subjectID uuid.UUID, limit, offset int) ([]*Result, int, error) {
	if err := s.subjects.AuthorizeSubject(ctx, caller, subject, subjectID); err != nil {
		return nil, 0, err
	}
	return s.results.ListBySubject(ctx, subject, subjectID, limit, offset)
}

// ListMine returns the calling respondent's own results.
func (s *Service) ListMine(ctx context.Context, caller auth.Principal, limit, offset int) ([]*Result, int, error) {
	if caller.Type != auth.PrincipalRespondent {
		return nil, 0, ErrForbidden
	}
	return s.results.ListBySubject(ctx, identity.SubjectRespondent, caller.ID, limit, offset)
}

// ListByQuestionnaire returns every result for a questionnaire. Only its
// author or an admin may list them.
func (s *Service) ListByQuestionnaire(ctx context.Context, caller auth.Principal, questionnaireID uuid.UUID, limit, offset int) ([]*Result, int, error) {
	tpl, err := s.templates.Get(ctx, caller, questionnaireID)
	if err != nil {
		return nil, 0, err
	}
	if !caller.IsAdmin() && (!caller.IsDoctor() || tpl.DoctorID != caller.ID) {
		return nil, 0, ErrForbidden
	}
	return s.results.ListByQuestionnaire(ctx, questionnaireID, limit, offset)
}
