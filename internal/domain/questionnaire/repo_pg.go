package questionnaire

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fusehealth/commerce-api/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const qCols = `id, title, description, product_id, status, questions, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, q *Questionnaire) error {
	q.ID = uuid.New()
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire (id, title, description, product_id, status, questions)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		q.ID, q.Title, q.Description, q.ProductID, q.Status, questions,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Questionnaire, error) {
	return scanQ(r.conn(ctx).QueryRow(ctx, `SELECT `+qCols+` FROM questionnaire WHERE id = $1`, id))
}

func (r *repoPG) GetByProduct(ctx context.Context, productID uuid.UUID) (*Questionnaire, error) {
	return scanQ(r.conn(ctx).QueryRow(ctx,
		`SELECT `+qCols+` FROM questionnaire WHERE product_id = $1 AND status = $2`,
		productID, StatusPublished))
}

func (r *repoPG) Update(ctx context.Context, q *Questionnaire) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		UPDATE questionnaire SET
			title=$2, description=$3, product_id=$4, status=$5, questions=$6, updated_at=NOW()
		WHERE id = $1`,
		q.ID, q.Title, q.Description, q.ProductID, q.Status, questions,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Questionnaire, int, error) {
	where := `TRUE`
	args := []interface{}{}
	if status != "" {
		where = `status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM questionnaire WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + qCols + ` FROM questionnaire WHERE ` + where + ` ORDER BY created_at DESC`
	if len(args) == 0 {
		q += ` LIMIT $1 OFFSET $2`
	} else {
		q += ` LIMIT $2 OFFSET $3`
	}
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Questionnaire
	for rows.Next() {
		item, err := scanQRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, item)
	}
	return out, total, nil
}

const respCols = `id, questionnaire_id, patient_id, answers, submitted_at`

func (r *repoPG) CreateResponse(ctx context.Context, resp *Response) error {
	resp.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO questionnaire_response (id, questionnaire_id, patient_id, answers)
		VALUES ($1,$2,$3,$4)`,
		resp.ID, resp.QuestionnaireID, resp.PatientID, resp.Answers,
	)
	return err
}

func (r *repoPG) GetResponse(ctx context.Context, id uuid.UUID) (*Response, error) {
	var resp Response
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+respCols+` FROM questionnaire_response WHERE id = $1`, id).
		Scan(&resp.ID, &resp.QuestionnaireID, &resp.PatientID, &resp.Answers, &resp.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrResponseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *repoPG) ListResponses(ctx context.Context, questionnaireID uuid.UUID, limit, offset int) ([]*Response, int, error) {
	return r.listResponsesWhere(ctx, `questionnaire_id = $1`, questionnaireID, limit, offset)
}

func (r *repoPG) ListResponsesByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Response, int, error) {
	return r.listResponsesWhere(ctx, `patient_id = $1`, patientID, limit, offset)
}

func (r *repoPG) listResponsesWhere(ctx context.Context, where string, arg interface{}, limit, offset int) ([]*Response, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM questionnaire_response WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+respCols+` FROM questionnaire_response WHERE `+where+
			` ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`,
		arg, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.QuestionnaireID, &resp.PatientID, &resp.Answers, &resp.SubmittedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &resp)
	}
	return out, total, nil
}

func scanQ(row pgx.Row) (*Questionnaire, error) {
	var q Questionnaire
	var questions []byte
	err := row.Scan(&q.ID, &q.Title, &q.Description, &q.ProductID, &q.Status, &questions, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, err
	}
	return &q, nil
}

func scanQRows(rows pgx.Rows) (*Questionnaire, error) {
	var q Questionnaire
	var questions []byte
	if err := rows.Scan(&q.ID, &q.Title, &q.Description, &q.ProductID, &q.Status, &questions, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &q.Questions); err != nil {
		return nil, err
	}
	return &q, nil
}
