package questionnaire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medscreen/medscreen/internal/platform/db"
)

type templateRepoPG struct{ pool *pgxpool.Pool }

func NewTemplateRepoPG(pool *pgxpool.Pool) TemplateRepository {
	return &templateRepoPG{pool: pool}
}

func (r *templateRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const templateCols = `id, doctor_id, title, description, is_public, questions, result_tiers,
	created_at, updated_at`

func (r *templateRepoPG) scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var questions, tiers []byte
	err := row.Scan(&t.ID, &t.DoctorID, &t.Title, &t.Description, &t.IsPublic, &questions, &tiers,
		&t.CreatedAt, &t.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &t.Questions); err != nil {
		return nil, fmt.Errorf("decode questions of %s: %w", t.ID, err)
	}
	if err := json.Unmarshal(tiers, &t.Tiers); err != nil {
		return nil, fmt.Errorf("decode result_tiers of %s: %w", t.ID, err)
	}
	return &t, nil
}

func encodeDefinition(t *Template) (questions, tiers []byte, err error) {
	if questions, err = json.Marshal(t.Questions); err != nil {
		return nil, nil, err
	}
	if t.Tiers == nil {
		return questions, []byte("[]"), nil
	}
	tiers, err = json.Marshal(t.Tiers)
	return questions, tiers, err
}

func (r *templateRepoPG) Create(ctx context.Context, t *Template) error {
	questions, tiers, err := encodeDefinition(t)
	if err != nil {
		return err
	}
	t.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO questionnaire (id, doctor_id, title, description, is_public, questions, result_tiers)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at`,
		t.ID, t.DoctorID, t.Title, t.Description, t.IsPublic, questions, tiers).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (r *templateRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Template, error) {
	return r.scanTemplate(r.conn(ctx).QueryRow(ctx, `SELECT `+templateCols+` FROM questionnaire WHERE id = $1`, id))
}

func (r *templateRepoPG) Update(ctx context.Context, t *Template) error {
	questions, tiers, err := encodeDefinition(t)
	if err != nil {
		return err
	}
	err = r.conn(ctx).QueryRow(ctx, `
		UPDATE questionnaire SET title=$2, description=$3, is_public=$4, questions=$5,
			result_tiers=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		t.ID, t.Title, t.Description, t.IsPublic, questions, tiers).Scan(&t.UpdatedAt)
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *templateRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM questionnaire WHERE id = $1`, id)
	return err
}

func (r *templateRepoPG) List(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return r.list(ctx, ``, nil, limit, offset)
}

func (r *templateRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Template, int, error) {
	return r.list(ctx, `WHERE doctor_id = $1`, []interface{}{doctorID}, limit, offset)
}

func (r *templateRepoPG) ListPublic(ctx context.Context, limit, offset int) ([]*Template, int, error) {
	return r.list(ctx, `WHERE is_public`, nil, limit, offset)
}

func (r *templateRepoPG) list(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*Template, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := fmt.Sprintf(`SELECT `+templateCols+` FROM questionnaire %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`, where, n+1, n+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Template
	for rows.Next() {
		t, err := r.scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	return items, total, rows.Err()
}
