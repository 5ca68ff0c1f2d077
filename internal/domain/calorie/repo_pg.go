package calorie

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscreen/medscreen/internal/platform/db"
)

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const recordCols = `id, patient_id, doctor_id, gender, height_cm, weight_kg, age, activity_level,
	ideal_body_weight, basal_rate, age_correction, activity_correction, weight_correction,
	total, total_rounded, bmi, created_at`

func (r *recordRepoPG) scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	in, res := &rec.Input, &rec.Result
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.DoctorID,
		&in.Gender, &in.HeightCm, &in.WeightKg, &in.Age, &in.ActivityLevel,
		&res.IdealBodyWeight, &res.BasalRate, &res.AgeCorrection, &res.ActivityCorrection, &res.WeightCorrection,
		&res.Total, &res.TotalRounded, &res.BMI, &rec.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	in, res := rec.Input, rec.Result
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO calorie_record (id, patient_id, doctor_id, gender, height_cm, weight_kg, age,
			activity_level, ideal_body_weight, basal_rate, age_correction, activity_correction,
			weight_correction, total, total_rounded, bmi)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		RETURNING created_at`,
		rec.ID, rec.PatientID, rec.DoctorID, in.Gender, in.HeightCm, in.WeightKg, in.Age,
		in.ActivityLevel, res.IdealBodyWeight, res.BasalRate, res.AgeCorrection, res.ActivityCorrection,
		res.WeightCorrection, res.Total, res.TotalRounded, res.BMI).Scan(&rec.CreatedAt)
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return r.scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM calorie_record WHERE id = $1`, id))
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM calorie_record WHERE id = $1`, id)
	return err
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM calorie_record WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+recordCols+` FROM calorie_record WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
