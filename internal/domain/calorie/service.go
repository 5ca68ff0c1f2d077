package calorie

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/platform/auth"
)

// PatientReader loads a patient the caller is allowed to see.
type PatientReader interface {
	GetPatient(ctx context.Context, caller auth.Principal, id uuid.UUID) (*identity.Patient, error)
}

type Service struct {
	records  RecordRepository
	patients PatientReader
	now      func() time.Time
}

func NewService(records RecordRepository, patients PatientReader) *Service {
	return &Service{records: records, patients: patients, now: time.Now}
}

// Calculate runs the formula without persisting anything.
func (s *Service) Calculate(_ context.Context, in Input) (*Result, error) {
	return Compute(in)
}

// RecordForPatient computes and stores a snapshot for the patient. Zero
// biometrics in the input are taken from the patient's profile; the
// activity level always comes from the request.
func (s *Service) RecordForPatient(ctx context.Context, caller auth.Principal, patientID uuid.UUID, in Input) (*Record, error) {
	p, err := s.patients.GetPatient(ctx, caller, patientID)
	if err != nil {
		return nil, err
	}
	in = fillFromProfile(in, p, s.now())

	res, err := Compute(in)
	if err != nil {
		return nil, err
	}
	in.Gender, _ = ParseGender(string(in.Gender))
	in.ActivityLevel, _ = ParseActivityLevel(string(in.ActivityLevel))

	rec := &Record{PatientID: patientID, Input: in, Result: *res}
	if caller.IsDoctor() {
		id := caller.ID
		rec.DoctorID = &id
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func fillFromProfile(in Input, p *identity.Patient, now time.Time) Input {
	if in.Gender == "" && p.Gender != nil {
		in.Gender = Gender(*p.Gender)
	}
	if in.HeightCm == 0 && p.HeightCm != nil {
		in.HeightCm = *p.HeightCm
	}
	if in.WeightKg == 0 && p.WeightKg != nil {
		in.WeightKg = *p.WeightKg
	}
	if in.Age == 0 {
		in.Age = p.AgeAt(now)
	}
	return in
}

func (s *Service) GetRecord(ctx context.Context, caller auth.Principal, id uuid.UUID) (*Record, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetPatient(ctx, caller, rec.PatientID); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) DeleteRecord(ctx context.Context, caller auth.Principal, id uuid.UUID) error {
	if _, err := s.GetRecord(ctx, caller, id); err != nil {
		return err
	}
	return s.records.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, caller auth.Principal, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	if _, err := s.patients.GetPatient(ctx, caller, patientID); err != nil {
		return nil, 0, err
	}
	return s.records.ListByPatient(ctx, patientID, limit, offset)
}
