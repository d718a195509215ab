package tier

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fusehealth/commerce-api/internal/platform/db"
)

// Tiers are platform-wide, so the table lives in the shared schema rather
// than a clinic schema.

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

const tierCols = `id, name, description, price_cents, analytics_access, custom_portal,
	priority_shipping, max_products, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, t *Tier) error {
	t.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shared.tier (
			id, name, description, price_cents, analytics_access, custom_portal,
			priority_shipping, max_products, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Name, t.Description, t.PriceCents, t.AnalyticsAccess, t.CustomPortal,
		t.PriorityShipping, t.MaxProducts, t.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tier, error) {
	return scanTier(r.conn(ctx).QueryRow(ctx, `SELECT `+tierCols+` FROM shared.tier WHERE id = $1`, id))
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Tier, error) {
	return scanTier(r.conn(ctx).QueryRow(ctx, `SELECT `+tierCols+` FROM shared.tier WHERE name = $1`, name))
}

func (r *repoPG) Update(ctx context.Context, t *Tier) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shared.tier SET
			name=$2, description=$3, price_cents=$4, analytics_access=$5,
			custom_portal=$6, priority_shipping=$7, max_products=$8, active=$9,
			updated_at=NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.PriceCents, t.AnalyticsAccess,
		t.CustomPortal, t.PriorityShipping, t.MaxProducts, t.Active,
	)
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM shared.tier WHERE id = $1`, id)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Tier, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM shared.tier`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+tierCols+` FROM shared.tier ORDER BY price_cents LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tiers []*Tier
	for rows.Next() {
		t, err := scanTierRows(rows)
		if err != nil {
			return nil, 0, err
		}
		tiers = append(tiers, t)
	}
	return tiers, total, nil
}

func (r *repoPG) AssignedClinicCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM shared.clinic WHERE tier_id = $1 AND deleted_at IS NULL`, id).Scan(&n)
	return n, err
}

func scanTier(row pgx.Row) (*Tier, error) {
	var t Tier
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.PriceCents, &t.AnalyticsAccess, &t.CustomPortal,
		&t.PriorityShipping, &t.MaxProducts, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTierRows(rows pgx.Rows) (*Tier, error) {
	var t Tier
	err := rows.Scan(
		&t.ID, &t.Name, &t.Description, &t.PriceCents, &t.AnalyticsAccess, &t.CustomPortal,
		&t.PriorityShipping, &t.MaxProducts, &t.Active, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
