package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/platform/auth"
)

// ── Mock Repositories ──

type mockDoctorRepo struct {
	data map[uuid.UUID]*Doctor
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	for _, existing := range m.data {
		if existing.Email == d.Email {
			return ErrEmailTaken
		}
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.data[d.ID] = d
	return nil
}
func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	if d, ok := m.data[id]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}
func (m *mockDoctorRepo) GetByEmail(_ context.Context, email string) (*Doctor, error) {
	for _, d := range m.data {
		if strings.EqualFold(d.Email, email) {
			return d, nil
		}
	}
	return nil, ErrNotFound
}
func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*Doctor, int, error) {
	var out []*Doctor
	for _, d := range m.data {
		out = append(out, d)
	}
	return out, len(out), nil
}

type mockPatientRepo struct {
	data map[uuid.UUID]*Patient
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	p.ID = uuid.New()
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if p, ok := m.data[id]; ok {
		return p, nil
	}
	return nil, ErrNotFound
}
func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.data[p.ID]; !ok {
		return ErrNotFound
	}
	m.data[p.ID] = p
	return nil
}
func (m *mockPatientRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}
func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.data {
		out = append(out, p)
	}
	return out, len(out), nil
}
func (m *mockPatientRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	var out []*Patient
	for _, p := range m.data {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

type mockCaregiverRepo struct {
	data map[uuid.UUID]*Caregiver
}

func (m *mockCaregiverRepo) Create(_ context.Context, c *Caregiver) error {
	c.ID = uuid.New()
	m.data[c.ID] = c
	return nil
}
func (m *mockCaregiverRepo) GetByID(_ context.Context, id uuid.UUID) (*Caregiver, error) {
	if c, ok := m.data[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}
func (m *mockCaregiverRepo) Update(_ context.Context, c *Caregiver) error {
	if _, ok := m.data[c.ID]; !ok {
		return ErrNotFound
	}
	m.data[c.ID] = c
	return nil
}
func (m *mockCaregiverRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.data, id)
	return nil
}
func (m *mockCaregiverRepo) List(_ context.Context, limit, offset int) ([]*Caregiver, int, error) {
	var out []*Caregiver
	for _, c := range m.data {
		out = append(out, c)
	}
	return out, len(out), nil
}
func (m *mockCaregiverRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Caregiver, int, error) {
	var out []*Caregiver
	for _, c := range m.data {
		if c.DoctorID == doctorID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}
func (m *mockCaregiverRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Caregiver, int, error) {
	var out []*Caregiver
	for _, c := range m.data {
		if c.PatientID != nil && *c.PatientID == patientID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

type mockRespondentRepo struct {
	data map[uuid.UUID]*Respondent
}

func (m *mockRespondentRepo) Create(_ context.Context, r *Respondent) error {
	for _, existing := range m.data {
		if existing.Email == r.Email {
			return ErrEmailTaken
		}
	}
	r.ID = uuid.New()
	m.data[r.ID] = r
	return nil
}
func (m *mockRespondentRepo) GetByID(_ context.Context, id uuid.UUID) (*Respondent, error) {
	if r, ok := m.data[id]; ok {
		return r, nil
	}
	return nil, ErrNotFound
}
func (m *mockRespondentRepo) GetByEmail(_ context.Context, email string) (*Respondent, error) {
	for _, r := range m.data {
		if strings.EqualFold(r.Email, email) {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

var testIssuer = auth.NewTokenIssuer([]byte("test-secret"), "medscreen-test", time.Hour)

func newTestService() *Service {
	return NewService(
		&mockDoctorRepo{data: make(map[uuid.UUID]*Doctor)},
		&mockPatientRepo{data: make(map[uuid.UUID]*Patient)},
		&mockCaregiverRepo{data: make(map[uuid.UUID]*Caregiver)},
		&mockRespondentRepo{data: make(map[uuid.UUID]*Respondent)},
		testIssuer,
	)
}

func doctorPrincipal() auth.Principal {
	return auth.Principal{ID: uuid.New(), Type: auth.PrincipalDoctor, Role: auth.RoleUser}
}

func adminPrincipal() auth.Principal {
	return auth.Principal{ID: uuid.New(), Type: auth.PrincipalDoctor, Role: auth.RoleAdmin}
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// ── Doctor ──

func TestService_RegisterAndLoginDoctor(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	d, err := svc.RegisterDoctor(ctx, RegisterDoctorRequest{
		Name: "Dr. Sari", Email: " Sari@Clinic.example ", Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("RegisterDoctor: %v", err)
	}
	if d.Email != "sari@clinic.example" {
		t.Errorf("expected normalized email, got %q", d.Email)
	}
	if d.Role != auth.RoleUser {
		t.Errorf("expected default role USER, got %s", d.Role)
	}
	if d.PasswordHash == "s3cret-pass" {
		t.Error("password must be hashed")
	}

	tok, err := svc.LoginDoctor(ctx, Credentials{Email: "SARI@clinic.example", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("LoginDoctor: %v", err)
	}
	p, err := testIssuer.Parse(tok.AccessToken)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if p.ID != d.ID || p.Type != auth.PrincipalDoctor {
		t.Errorf("unexpected principal %+v", p)
	}
	if tok.TokenType != "Bearer" {
		t.Errorf("expected Bearer token type, got %s", tok.TokenType)
	}
}

func TestService_LoginDoctor_Invalid(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.RegisterDoctor(ctx, RegisterDoctorRequest{Name: "A", Email: "a@x.example", Password: "password1"})

	if _, err := svc.LoginDoctor(ctx, Credentials{Email: "a@x.example", Password: "wrong-pass"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.LoginDoctor(ctx, Credentials{Email: "nobody@x.example", Password: "password1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestService_RegisterDoctor_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	cases := []RegisterDoctorRequest{
		{Email: "a@x.example", Password: "password1"},
		{Name: "A", Email: "not-an-email", Password: "password1"},
		{Name: "A", Email: "a@x.example", Password: "short"},
		{Name: "A", Email: "a@x.example", Password: "password1", Role: "ROOT"},
	}
	for _, req := range cases {
		if _, err := svc.RegisterDoctor(ctx, req); !errors.Is(err, ErrInvalid) {
			t.Errorf("RegisterDoctor(%+v): expected ErrInvalid, got %v", req, err)
		}
	}
}

func TestService_RegisterDoctor_DuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	req := RegisterDoctorRequest{Name: "A", Email: "a@x.example", Password: "password1"}
	if _, err := svc.RegisterDoctor(ctx, req); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RegisterDoctor(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestService_GetDoctor_Access(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	d, _ := svc.RegisterDoctor(ctx, RegisterDoctorRequest{Name: "A", Email: "a@x.example", Password: "password1"})

	if _, err := svc.GetDoctor(ctx, d.Principal(), d.ID); err != nil {
		t.Errorf("doctor should read own profile, got %v", err)
	}
	if _, err := svc.GetDoctor(ctx, doctorPrincipal(), d.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetDoctor(ctx, adminPrincipal(), d.ID); err != nil {
		t.Errorf("admin should read any profile, got %v", err)
	}
}

// ── Patient ──

func TestService_CreatePatient(t *testing.T) {
	svc := newTestService()
	doc := doctorPrincipal()
	p := &Patient{Name: " Budi ", Gender: strPtr("Laki-laki"), HeightCm: floatPtr(170), DoctorID: uuid.New()}

	if err := svc.CreatePatient(context.Background(), doc, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if p.DoctorID != doc.ID {
		t.Error("non-admin doctors always own the patients they create")
	}
	if p.Name != "Budi" {
		t.Errorf("expected trimmed name, got %q", p.Name)
	}
	if *p.Gender != "male" {
		t.Errorf("expected normalized gender, got %q", *p.Gender)
	}
}

func TestService_CreatePatient_Validation(t *testing.T) {
	svc := newTestService()
	doc := doctorPrincipal()
	cases := []*Patient{
		{Name: ""},
		{Name: "A", Gender: strPtr("other")},
		{Name: "A", HeightCm: floatPtr(0)},
		{Name: "A", WeightKg: floatPtr(-3)},
	}
	for _, p := range cases {
		if err := svc.CreatePatient(context.Background(), doc, p); !errors.Is(err, ErrInvalid) {
			t.Errorf("expected ErrInvalid for %+v, got %v", p, err)
		}
	}
}

func TestService_CreatePatient_RespondentForbidden(t *testing.T) {
	svc := newTestService()
	resp := auth.Principal{ID: uuid.New(), Type: auth.PrincipalRespondent, Role: auth.RoleUser}
	if err := svc.CreatePatient(context.Background(), resp, &Patient{Name: "A"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_PatientOwnership(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := doctorPrincipal()
	other := doctorPrincipal()

	p := &Patient{Name: "A"}
	svc.CreatePatient(ctx, owner, p)

	if _, err := svc.GetPatient(ctx, other, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for other doctor, got %v", err)
	}
	if err := svc.UpdatePatient(ctx, other, &Patient{ID: p.ID, Name: "B"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden on update, got %v", err)
	}
	if err := svc.DeletePatient(ctx, other, p.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden on delete, got %v", err)
	}
	if _, err := svc.GetPatient(ctx, adminPrincipal(), p.ID); err != nil {
		t.Errorf("admin should read any patient, got %v", err)
	}

	upd := &Patient{ID: p.ID, Name: "Renamed"}
	if err := svc.UpdatePatient(ctx, owner, upd); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if upd.DoctorID != owner.ID {
		t.Error("update must keep the owning doctor")
	}
	if err := svc.DeletePatient(ctx, owner, p.ID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	if _, err := svc.GetPatient(ctx, owner, p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestService_ListPatients_Scoped(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	a, b := doctorPrincipal(), doctorPrincipal()
	svc.CreatePatient(ctx, a, &Patient{Name: "A1"})
	svc.CreatePatient(ctx, a, &Patient{Name: "A2"})
	svc.CreatePatient(ctx, b, &Patient{Name: "B1"})

	_, total, _ := svc.ListPatients(ctx, a, 20, 0)
	if total != 2 {
		t.Errorf("expected 2 patients for doctor a, got %d", total)
	}
	_, total, _ = svc.ListPatients(ctx, adminPrincipal(), 20, 0)
	if total != 3 {
		t.Errorf("expected admin to see 3 patients, got %d", total)
	}
}

func TestPatient_AgeAtBirthdayBoundary(t *testing.T) {
	birth := time.Date(1980, 6, 15, 0, 0, 0, 0, time.UTC)
	p := &Patient{BirthDate: &birth}

	if got := p.AgeAt(time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC)); got != 45 {
		t.Errorf("day before birthday: expected 45, got %d", got)
	}
	if got := p.AgeAt(time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)); got != 46 {
		t.Errorf("on birthday: expected 46, got %d", got)
	}
	if got := (&Patient{}).AgeAt(time.Now()); got != 0 {
		t.Errorf("unknown birth date: expected 0, got %d", got)
	}
}

// ── Caregiver ──

func TestService_Caregiver_LinkedPatient(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner, other := doctorPrincipal(), doctorPrincipal()
	p := &Patient{Name: "A"}
	svc.CreatePatient(ctx, owner, p)

	c := &Caregiver{Name: "Ibu A", PatientID: &p.ID, Relationship: strPtr("mother")}
	if err := svc.CreateCaregiver(ctx, owner, c); err != nil {
		t.Fatalf("CreateCaregiver: %v", err)
	}

	foreign := &Caregiver{Name: "X", PatientID: &p.ID}
	if err := svc.CreateCaregiver(ctx, other, foreign); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid linking another doctor's patient, got %v", err)
	}

	missing := uuid.New()
	if err := svc.CreateCaregiver(ctx, owner, &Caregiver{Name: "Y", PatientID: &missing}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown patient, got %v", err)
	}

	items, total, err := svc.ListCaregiversByPatient(ctx, owner, p.ID, 20, 0)
	if err != nil {
		t.Fatalf("ListCaregiversByPatient: %v", err)
	}
	if total != 1 || items[0].ID != c.ID {
		t.Errorf("expected the linked caregiver, got %d items", total)
	}
	if _, _, err := svc.ListCaregiversByPatient(ctx, other, p.ID, 20, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Caregiver_UpdateDelete(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner := doctorPrincipal()
	c := &Caregiver{Name: "A"}
	svc.CreateCaregiver(ctx, owner, c)

	if err := svc.UpdateCaregiver(ctx, doctorPrincipal(), &Caregiver{ID: c.ID, Name: "B"}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := svc.UpdateCaregiver(ctx, owner, &Caregiver{ID: c.ID, Name: "B"}); err != nil {
		t.Fatalf("UpdateCaregiver: %v", err)
	}
	if err := svc.DeleteCaregiver(ctx, owner, c.ID); err != nil {
		t.Fatalf("DeleteCaregiver: %v", err)
	}
	if _, err := svc.GetCaregiver(ctx, owner, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// ── Respondent ──

func TestService_RespondentRegisterLogin(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tok, err := svc.RegisterRespondent(ctx, RegisterRespondentRequest{
		Name: "Rina", Email: "rina@x.example", Password: "password1", Type: RespondentCaregiver,
	})
	if err != nil {
		t.Fatalf("RegisterRespondent: %v", err)
	}
	if tok.Principal.Type != auth.PrincipalRespondent || tok.Principal.Role != auth.RoleUser {
		t.Errorf("unexpected principal %+v", tok.Principal)
	}

	login, err := svc.LoginRespondent(ctx, Credentials{Email: "rina@x.example", Password: "password1"})
	if err != nil {
		t.Fatalf("LoginRespondent: %v", err)
	}
	if login.Principal.ID != tok.Principal.ID {
		t.Error("login should return the registered respondent")
	}

	if _, err := svc.RegisterRespondent(ctx, RegisterRespondentRequest{
		Name: "Rina", Email: "rina@x.example", Password: "password1", Type: RespondentPatient,
	}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
	if _, err := svc.RegisterRespondent(ctx, RegisterRespondentRequest{
		Name: "X", Email: "x@x.example", Password: "password1", Type: "nurse",
	}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for unknown type, got %v", err)
	}
}

func TestService_GetRespondent_OnlySelf(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tok, _ := svc.RegisterRespondent(ctx, RegisterRespondentRequest{
		Name: "R", Email: "r@x.example", Password: "password1", Type: RespondentPatient,
	})
	other := auth.Principal{ID: uuid.New(), Type: auth.PrincipalRespondent, Role: auth.RoleUser}

	if _, err := svc.GetRespondent(ctx, other, tok.Principal.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetRespondent(ctx, tok.Principal, tok.Principal.ID); err != nil {
		t.Errorf("respondent should read itself, got %v", err)
	}
}

// ── Subject access ──

func TestService_AuthorizeSubject(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	owner, other := doctorPrincipal(), doctorPrincipal()
	p := &Patient{Name: "A"}
	svc.CreatePatient(ctx, owner, p)
	c := &Caregiver{Name: "B"}
	svc.CreateCaregiver(ctx, owner, c)
	tok, _ := svc.RegisterRespondent(ctx, RegisterRespondentRequest{
		Name: "R", Email: "r@x.example", Password: "password1", Type: RespondentPatient,
	})
	resp := tok.Principal

	tests := []struct {
		name    string
		caller  auth.Principal
		subject SubjectType
		id      uuid.UUID
		wantErr error
	}{
		{"owner patient", owner, SubjectPatient, p.ID, nil},
		{"other patient", other, SubjectPatient, p.ID, ErrForbidden},
		{"owner caregiver", owner, SubjectCaregiver, c.ID, nil},
		{"missing patient", owner, SubjectPatient, uuid.New(), ErrNotFound},
		{"respondent self", resp, SubjectRespondent, resp.ID, nil},
		{"respondent other", resp, SubjectRespondent, uuid.New(), ErrForbidden},
		{"doctor on respondent", owner, SubjectRespondent, resp.ID, ErrForbidden},
		{"admin on respondent", adminPrincipal(), SubjectRespondent, resp.ID, nil},
		{"respondent on patient", resp, SubjectPatient, p.ID, ErrForbidden},
		{"unknown subject", owner, "pet", p.ID, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.AuthorizeSubject(ctx, tt.caller, tt.subject, tt.id)
			if tt.wantErr == nil && err != nil {
				t.Errorf("expected no error, got %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
