package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

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

const subCols = `id, patient_id, product_id, status, interval_days, price_cents,
	next_renewal_at, paused_at, cancelled_at, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, s *Subscription) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO subscription (
			id, patient_id, product_id, status, interval_days, price_cents, next_renewal_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.PatientID, s.ProductID, s.Status, s.IntervalDays, s.PriceCents, s.NextRenewalAt,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return scanSub(r.conn(ctx).QueryRow(ctx, `SELECT `+subCols+` FROM subscription WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, s *Subscription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE subscription SET
			status=$2, interval_days=$3, price_cents=$4, next_renewal_at=$5,
			paused_at=$6, cancelled_at=$7, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.Status, s.IntervalDays, s.PriceCents, s.NextRenewalAt,
		s.PausedAt, s.CancelledAt,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*Subscription, int, error) {
	where := `TRUE`
	args := []interface{}{}
	if patientID != uuid.Nil {
		args = append(args, patientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if status != "" {
		args = append(args, status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM subscription WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM subscription WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			subCols, where, limitPos, limitPos+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSubRows(rows)
		if err != nil {
			return nil, 0, err
		}
		subs = append(subs, s)
	}
	return subs, total, nil
}

func (r *repoPG) ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+subCols+` FROM subscription
		 WHERE status = $1 AND next_renewal_at <= $2
		 ORDER BY next_renewal_at LIMIT $3`,
		StatusActive, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		s, err := scanSubRows(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func scanSub(row pgx.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(
		&s.ID, &s.PatientID, &s.ProductID, &s.Status, &s.IntervalDays, &s.PriceCents,
		&s.NextRenewalAt, &s.PausedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanSubRows(rows pgx.Rows) (*Subscription, error) {
	var s Subscription
	if err := rows.Scan(
		&s.ID, &s.PatientID, &s.ProductID, &s.Status, &s.IntervalDays, &s.PriceCents,
		&s.NextRenewalAt, &s.PausedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &s, nil
}
