package affiliate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fusehealth/commerce-api/internal/platform/db"
)

// Affiliate and commission rows live in the clinic's schema; the tenant
// middleware sets the search path before any query runs.

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

const affiliateCols = `id, name, email, code, commission_bps, active, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, a *Affiliate) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO affiliate (id, name, email, code, commission_bps, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.Name, a.Email, a.Code, a.CommissionBps, a.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Affiliate, error) {
	return scanAffiliate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+affiliateCols+` FROM affiliate WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Affiliate, error) {
	return scanAffiliate(r.conn(ctx).QueryRow(ctx,
		`SELECT `+affiliateCols+` FROM affiliate WHERE LOWER(code) = LOWER($1) AND deleted_at IS NULL`, code))
}

func (r *repoPG) Update(ctx context.Context, a *Affiliate) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE affiliate SET
			name=$2, email=$3, code=$4, commission_bps=$5, active=$6, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		a.ID, a.Name, a.Email, a.Code, a.CommissionBps, a.Active,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE affiliate SET deleted_at = NOW(), active = FALSE
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Affiliate, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM affiliate WHERE deleted_at IS NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+affiliateCols+` FROM affiliate WHERE deleted_at IS NULL
		 ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var affiliates []*Affiliate
	for rows.Next() {
		var a Affiliate
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Code, &a.CommissionBps,
			&a.Active, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
			return nil, 0, err
		}
		affiliates = append(affiliates, &a)
	}
	return affiliates, total, nil
}

const commissionCols = `id, affiliate_id, order_id, amount_cents, status, paid_at, created_at, updated_at`

func (r *repoPG) CreateCommission(ctx context.Context, c *Commission) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO affiliate_commission (id, affiliate_id, order_id, amount_cents, status)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.AffiliateID, c.OrderID, c.AmountCents, c.Status,
	)
	return err
}

func (r *repoPG) GetCommission(ctx context.Context, id uuid.UUID) (*Commission, error) {
	var c Commission
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+commissionCols+` FROM affiliate_commission WHERE id = $1`, id,
	).Scan(&c.ID, &c.AffiliateID, &c.OrderID, &c.AmountCents, &c.Status,
		&c.PaidAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCommissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repoPG) UpdateCommission(ctx context.Context, c *Commission) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE affiliate_commission SET status=$2, paid_at=$3, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.Status, c.PaidAt,
	)
	return err
}

func (r *repoPG) ListCommissions(ctx context.Context, affiliateID uuid.UUID, status string, limit, offset int) ([]*Commission, int, error) {
	where := `affiliate_id = $1`
	args := []interface{}{affiliateID}
	if status != "" {
		where += ` AND status = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM affiliate_commission WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM affiliate_commission WHERE %s
			ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			commissionCols, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var commissions []*Commission
	for rows.Next() {
		var c Commission
		if err := rows.Scan(&c.ID, &c.AffiliateID, &c.OrderID, &c.AmountCents, &c.Status,
			&c.PaidAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		commissions = append(commissions, &c)
	}
	return commissions, total, nil
}

func (r *repoPG) CommissionTotal(ctx context.Context, affiliateID uuid.UUID, status string) (int64, error) {
	var total int64
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM affiliate_commission
		WHERE affiliate_id = $1 AND status = $2`,
		affiliateID, status).Scan(&total)
	return total, err
}

func scanAffiliate(row pgx.Row) (*Affiliate, error) {
	var a Affiliate
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Code, &a.CommissionBps,
		&a.Active, &a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
