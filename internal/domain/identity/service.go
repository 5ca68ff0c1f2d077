package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/platform/auth"
)

type Service struct {
	doctors     DoctorRepository
	patients    PatientRepository
	caregivers  CaregiverRepository
	respondents RespondentRepository
	tokens      *auth.TokenIssuer
}

func NewService(
	doctors DoctorRepository,
	patients PatientRepository,
	caregivers CaregiverRepository,
	respondents RespondentRepository,
	tokens *auth.TokenIssuer,
) *Service {
	return &Service{
		doctors:     doctors,
		patients:    patients,
		caregivers:  caregivers,
		respondents: respondents,
		tokens:      tokens,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", invalid("email is not valid")
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	hash, err := auth.HashPassword(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return "", invalid("%v", err)
	}
	return hash, err
}

// canAccess reports whether caller may act on a record owned by ownerID.
func canAccess(caller auth.Principal, ownerID uuid.UUID) bool {
	return caller.IsAdmin() || (caller.IsDoctor() && caller.ID == ownerID)
}

func (s *Service) issue(p auth.Principal) (*TokenResponse, error) {
	token, exp, err := s.tokens.Issue(p)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresAt: exp, Principal: p}, nil
}

// -- Doctor --

func (s *Service) RegisterDoctor(ctx context.Context, req RegisterDoctorRequest) (*Doctor, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role := req.Role
	if role == "" {
		role = auth.RoleUser
	}
	if role != auth.RoleAdmin && role != auth.RoleUser {
		return nil, invalid("invalid role: %s", role)
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	d := &Doctor{Name: name, Email: email, PasswordHash: hash, Role: role}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) LoginDoctor(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	d, err := s.doctors.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(d.PasswordHash, creds.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(d.Principal())
}

func (s *Service) GetDoctor(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Doctor, error) {
	if !caller.IsAdmin() && caller.ID != id {
		return nil, ErrForbidden
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// -- Patient --

// normalizeGender accepts the English and Indonesian spellings used on the
// intake forms.
func normalizeGender(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "laki-laki", "l":
		return "male", true
	case "female", "f", "perempuan", "p":
		return "female", true
	}
	return "", false
}

func validatePatient(p *Patient) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("name is required")
	}
	if p.Gender != nil {
		g, ok := normalizeGender(*p.Gender)
		if !ok {
			return invalid("gender must be male or female")
		}
		p.Gender = &g
	}
	if p.HeightCm != nil && *p.HeightCm <= 0 {
		return invalid("height_cm must be positive")
	}
	if p.WeightKg != nil && *p.WeightKg <= 0 {
		return invalid("weight_kg must be positive")
	}
	return nil
}

// CreatePatient registers a patient under the calling doctor. Admins may
// assign another doctor through DoctorID.
func (s *Service) CreatePatient(ctx context.Context, caller auth.Principal, p *Patient) error {
	if !caller.IsDoctor() {
		return ErrForbidden
	}
	if p.DoctorID == uuid.Nil || !caller.IsAdmin() {
		p.DoctorID = caller.ID
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Patient, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, p.DoctorID) {
		return nil, ErrForbidden
	}
	return p, nil
}

func (s *Service) UpdatePatient(ctx context.Context, caller auth.Principal, p *Patient) error {
	existing, err := s.GetPatient(ctx, caller, p.ID)
	if err != nil {
		return err
	}
	if err := validatePatient(p); err != nil {
		return err
	}
	p.DoctorID = existing.DoctorID
	p.CreatedAt = existing.CreatedAt
	return s.patients.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	if _, err := s.GetPatient(ctx, caller, id); err != nil {
		return err
	}
	return s.patients.Delete(ctx, id)
}

// ListPatients returns the caller's patients, or every patient for admins.
func (s *Service) ListPatients(ctx context.Context, caller auth.Principal, limit, offset int) ([]*Patient, int, error) {
	if caller.IsAdmin() {
		return s.patients.List(ctx, limit, offset)
	}
	return s.patients.ListByDoctor(ctx, caller.ID, limit, offset)
}

// -- Caregiver --

func (s *Service) validateCaregiver(ctx context.Context, caller auth.Principal, c *Caregiver) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return invalid("name is required")
	}
	if c.PatientID == nil {
		return nil
	}
	p, err := s.patients.GetByID(ctx, *c.PatientID)
	if errors.Is(err, ErrNotFound) {
		return invalid("patient %s does not exist", c.PatientID)
	}
	if err != nil {
		return err
	}
	if p.DoctorID != c.DoctorID && !caller.IsAdmin() {
		return invalid("patient %s belongs to another doctor", c.PatientID)
	}
	return nil
}

func (s *Service) CreateCaregiver(ctx context.Context, caller auth.Principal, c *Caregiver) error {
	if !caller.IsDoctor() {
		return ErrForbidden
	}
	if c.DoctorID == uuid.Nil || !caller.IsAdmin() {
		c.DoctorID = caller.ID
	}
	if err := s.validateCaregiver(ctx, caller, c); err != nil {
		return err
	}
	return s.caregivers.Create(ctx, c)
}

func (s *Service) GetCaregiver(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Caregiver, error) {
	c, err := s.caregivers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(caller, c.DoctorID) {
		return nil, ErrForbidden
	}
	return c, nil
}

func (s *Service) UpdateCaregiver(ctx context.Context, caller auth.Principal, c *Caregiver) error {
	existing, err := s.GetCaregiver(ctx, caller, c.ID)
	if err != nil {
		return err
	}
	c.DoctorID = existing.DoctorID
	c.CreatedAt = existing.CreatedAt
	if err := s.validateCaregiver(ctx, caller, c); err != nil {
		return err
	}
	return s.caregivers.Update(ctx, c)
}

func (s *Service) DeleteCaregiver(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	if _, err := s.GetCaregiver(ctx, caller, id); err != nil {
		return err
	}
	return s.caregivers.Delete(ctx, id)
}

func (s *Service) ListCaregivers(ctx context.Context, caller auth.Principal, limit, offset int) ([]*Caregiver, int, error) {
	if caller.IsAdmin() {
		return s.caregivers.List(ctx, limit, offset)
	}
	return s.caregivers.ListByDoctor(ctx, caller.ID, limit, offset)
}

func (s *Service) ListCaregiversByPatient(ctx context.Context, caller auth.Principal, patientID uuid.UUID, limit, offset int) ([]*Caregiver, int, error) {
	if _, err := s.GetPatient(ctx, caller, patientID); err != nil {
		return nil, 0, err
	}
	return s.caregivers.ListByPatient(ctx, patientID, limit, offset)
}

// -- Respondent --

func (s *Service) RegisterRespondent(ctx context.Context, req RegisterRespondentRequest) (*TokenResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if req.Type != RespondentPatient && req.Type != RespondentCaregiver {
		return nil, invalid("type must be patient or caregiver")
	}
	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	r := &Respondent{Name: name, Email: email, PasswordHash: hash, Type: req.Type}
	if err := s.respondents.Create(ctx, r); err != nil {
		return nil, err
	}
	return s.issue(r.Principal())
}

func (s *Service) LoginRespondent(ctx context.Context, creds Credentials) (*TokenResponse, error) {
	r, err := s.respondents.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(r.PasswordHash, creds.Password) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(r.Principal())
}

func (s *Service) GetRespondent(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Respondent, error) {
	if caller.Type == auth.PrincipalRespondent && caller.ID != id {
		return nil, ErrForbidden
	}
	return s.respondents.GetByID(ctx, id)
}

// -- Subject access --

// SubjectType names who a screening or calorie record is about.
type SubjectType string

const (
	SubjectPatient    SubjectType = "patient"
	SubjectCaregiver  SubjectType = "caregiver"
	SubjectRespondent SubjectType = "respondent"
)

// AuthorizeSubject checks that caller may record or read data about the
// given subject. Doctors reach their own patients and caregivers; a
// respondent reaches only itself.
func (s *Service) AuthorizeSubject(ctx context.Context, caller auth.Principal, subject SubjectType, id uuid.UUID) error {
	switch subject {
	case SubjectPatient:
		_, err := s.GetPatient(ctx, caller, id)
		return err
	case SubjectCaregiver:
		_, err := s.GetCaregiver(ctx, caller, id)
		return err
	case SubjectRespondent:
		if caller.IsAdmin() {
			_, err := s.respondents.GetByID(ctx, id)
			return err
		}
		if caller.Type != auth.PrincipalRespondent || caller.ID != id {
			return ErrForbidden
		}
		return nil
	}
	return invalid("unknown subject type: %s", subject)
}
