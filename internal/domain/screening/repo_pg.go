package screening

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscreen/medscreen/internal/domain/identity"
	"github.com/medscreen/medscreen/internal/platform/db"
)

type resultRepoPG struct{ pool *pgxpool.Pool }

func NewResultRepoPG(pool *pgxpool.Pool) ResultRepository {
	return &resultRepoPG{pool: pool}
}

func (r *resultRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const resultCols = `id, questionnaire_id, doctor_id, subject_type, subject_id, answers, total_score,
	tier, resolved, created_at`

func (r *resultRepoPG) scanResult(row pgx.Row) (*Result, error) {
	var res Result
	var answers, tier []byte
	err := row.Scan(&res.ID, &res.QuestionnaireID, &res.DoctorID, &res.SubjectType, &res.SubjectID,
		&answers, &res.TotalScore, &tier, &res.Resolved, &res.CreatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(answers, &res.Answers); err != nil {
		return nil, fmt.Errorf("decode answers of %s: %w", res.ID, err)
	}
	if len(tier) > 0 {
		if err := json.Unmarshal(tier, &res.Tier); err != nil {
			return nil, fmt.Errorf("decode tier of %s: %w", res.ID, err)
		}
	}
	return &res, nil
}

func (r *resultRepoPG) Create(ctx context.Context, res *Result) error {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return err
	}
	var tier []byte
	if res.Tier != nil {
		if tier, err = json.Marshal(res.Tier); err != nil {
			return err
		}
	}
	res.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO screening_result (id, questionnaire_id, doctor_id, subject_type, subject_id,
			answers, total_score, tier, resolved)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		res.ID, res.QuestionnaireID, res.DoctorID, res.SubjectType, res.SubjectID,
		answers, res.TotalScore, tier, res.Resolved).Scan(&res.CreatedAt)
}

func (r *resultRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Result, error) {
	return r.scanResult(r.conn(ctx).QueryRow(ctx, `SELECT `+resultCols+` FROM screening_result WHERE id = $1`, id))
}

func (r *resultRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM screening_result WHERE id = $1`, id)
	return err
}

func (r *resultRepoPG) ListBySubject(ctx context.Context, subject identity.SubjectType, subjectID uuid.UUID, limit, offset int) ([]*Result, int, error) {
	return r.list(ctx, `subject_type = $1 AND subject_id = $2`, []interface{}{subject, subjectID}, limit, offset)
}

func (r *resultRepoPG) ListByQuestionnaire(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*Result, int, error) {
	return r.list(ctx, `questionnaire_id = $1`, []interface{}{questionnaireID}, limit, offset)
}

func (r *resultRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Result, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM screening_result WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM screening_result WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		resultCols, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Result
	for rows.Next() {
		res, err := r.scanResult(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, res)
	}
	return items, total, rows.Err()
}
