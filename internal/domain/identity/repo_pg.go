package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscreen/medscreen/internal/platform/db"
)

func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsNoRows(err):
		return ErrNotFound
	case db.IsUniqueViolation(err):
		return ErrEmailTaken
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced record does not exist", ErrInvalid)
	}
	return err
}

// =========== Doctor Repository ===========

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const doctorCols = `id, name, email, password_hash, role, created_at, updated_at`

func (r *doctorRepoPG) scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.Role, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &d, nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (id, name, email, password_hash, role)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		d.ID, d.Name, d.Email, d.PasswordHash, d.Role).Scan(&d.CreatedAt, &d.UpdatedAt)
	return wrapErr(err)
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
}

func (r *doctorRepoPG) GetByEmail(ctx context.Context, email string) (*Doctor, error) {
	return r.scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+doctorCols+` FROM doctor ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := r.scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, doctor_id, name, gender, birth_date, height_cm, weight_kg,
	phone, address, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.DoctorID, &p.Name, &p.Gender, &p.BirthDate, &p.HeightCm, &p.WeightKg,
		&p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (id, doctor_id, name, gender, birth_date, height_cm, weight_kg, phone, address)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.DoctorID, p.Name, p.Gender, p.BirthDate, p.HeightCm, p.WeightKg,
		p.Phone, p.Address).Scan(&p.CreatedAt, &p.UpdatedAt)
	return wrapErr(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET name=$2, gender=$3, birth_date=$4, height_cm=$5, weight_kg=$6,
			phone=$7, address=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Name, p.Gender, p.BirthDate, p.HeightCm, p.WeightKg,
		p.Phone, p.Address).Scan(&p.UpdatedAt)
	return wrapErr(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *patientRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Patient, int, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *patientRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+patientCols+` FROM patient %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Caregiver Repository ===========

type caregiverRepoPG struct{ pool *pgxpool.Pool }

func NewCaregiverRepoPG(pool *pgxpool.Pool) CaregiverRepository {
	return &caregiverRepoPG{pool: pool}
}

func (r *caregiverRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const caregiverCols = `id, doctor_id, patient_id, name, relationship, phone, created_at, updated_at`

func (r *caregiverRepoPG) scanCaregiver(row pgx.Row) (*Caregiver, error) {
	var c Caregiver
	err := row.Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.Name, &c.Relationship, &c.Phone,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &c, nil
}

func (r *caregiverRepoPG) Create(ctx context.Context, c *Caregiver) error {
	c.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO caregiver (id, doctor_id, patient_id, name, relationship, phone)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at, updated_at`,
		c.ID, c.DoctorID, c.PatientID, c.Name, c.Relationship, c.Phone).Scan(&c.CreatedAt, &c.UpdatedAt)
	return wrapErr(err)
}

func (r *caregiverRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Caregiver, error) {
	return r.scanCaregiver(r.conn(ctx).QueryRow(ctx, `SELECT `+caregiverCols+` FROM caregiver WHERE id = $1`, id))
}

func (r *caregiverRepoPG) Update(ctx context.Context, c *Caregiver) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE caregiver SET patient_id=$2, name=$3, relationship=$4, phone=$5, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		c.ID, c.PatientID, c.Name, c.Relationship, c.Phone).Scan(&c.UpdatedAt)
	return wrapErr(err)
}

func (r *caregiverRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM caregiver WHERE id = $1`, id)
	return err
}

func (r *caregiverRepoPG) List(ctx context.Context, limit, offset int) ([]*Caregiver, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *caregiverRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Caregiver, int, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *caregiverRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Caregiver, int, error) {
	return r.list(ctx, `WHERE patient_id = $1`, []interface{}{patientID}, limit, offset)
}

func (r *caregiverRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Caregiver, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM caregiver `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+caregiverCols+` FROM caregiver %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Caregiver
	for rows.Next() {
		c, err := r.scanCaregiver(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// =========== Respondent Repository ===========

type respondentRepoPG struct{ pool *pgxpool.Pool }

func NewRespondentRepoPG(pool *pgxpool.Pool) RespondentRepository {
	return &respondentRepoPG{pool: pool}
}

func (r *respondentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const respondentCols = `id, name, email, password_hash, respondent_type, created_at`

func (r *respondentRepoPG) scanRespondent(row pgx.Row) (*Respondent, error) {
	var x Respondent
	if err := row.Scan(&x.ID, &x.Name, &x.Email, &x.PasswordHash, &x.Type, &x.CreatedAt); err != nil {
		return nil, wrapErr(err)
	}
	return &x, nil
}

func (r *respondentRepoPG) Create(ctx context.Context, x *Respondent) error {
	x.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO respondent (id, name, email, password_hash, respondent_type)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		x.ID, x.Name, x.Email, x.PasswordHash, x.Type).Scan(&x.CreatedAt)
	return wrapErr(err)
}

func (r *respondentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Respondent, error) {
	return r.scanRespondent(r.conn(ctx).QueryRow(ctx, `SELECT `+respondentCols+` FROM respondent WHERE id = $1`, id))
}

func (r *respondentRepoPG) GetByEmail(ctx context.Context, email string) (*Respondent, error) {
	return r.scanRespondent(r.conn(ctx).QueryRow(ctx,
		`SELECT `+respondentCols+` FROM respondent WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
}
