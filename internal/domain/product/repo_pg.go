package product

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

// Product rows live in the clinic's schema; the tenant middleware sets the
// search path before any query runs.

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

const productCols = `id, name, sku, description, price_cents, currency, source,
	partner_code, partner_product_id, requires_prescription, active,
	created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, p *Product) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO product (
			id, name, sku, description, price_cents, currency, source,
			partner_code, partner_product_id, requires_prescription, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.Name, p.SKU, p.Description, p.PriceCents, p.Currency, p.Source,
		p.PartnerCode, p.PartnerProductID, p.RequiresPrescription, p.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM product WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetBySKU(ctx context.Context, sku string) (*Product, error) {
	return scanProduct(r.conn(ctx).QueryRow(ctx,
		`SELECT `+productCols+` FROM product WHERE sku = $1 AND deleted_at IS NULL`, sku))
}

func (r *repoPG) Update(ctx context.Context, p *Product) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE product SET
			name=$2, sku=$3, description=$4, price_cents=$5, currency=$6, source=$7,
			partner_code=$8, partner_product_id=$9, requires_prescription=$10,
			active=$11, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		p.ID, p.Name, p.SKU, p.Description, p.PriceCents, p.Currency, p.Source,
		p.PartnerCode, p.PartnerProductID, p.RequiresPrescription, p.Active,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE product SET deleted_at = NOW(), active = FALSE
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Product, int, error) {
	where := `deleted_at IS NULL`
	args := []interface{}{}
	n := 0

	if f.Source != "" {
		n++
		where += fmt.Sprintf(" AND source = $%d", n)
		args = append(args, f.Source)
	}
	if f.ActiveOnly {
		where += " AND active"
	}
	if f.Prescription != nil {
		n++
		where += fmt.Sprintf(" AND requires_prescription = $%d", n)
		args = append(args, *f.Prescription)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM product WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM product WHERE %s ORDER BY name LIMIT $%d OFFSET $%d`,
			productCols, where, n+1, n+2),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.SKU, &p.Description, &p.PriceCents, &p.Currency, &p.Source,
			&p.PartnerCode, &p.PartnerProductID, &p.RequiresPrescription, &p.Active,
			&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
		); err != nil {
			return nil, 0, err
		}
		products = append(products, &p)
	}
	return products, total, nil
}

func scanProduct(row pgx.Row) (*Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.Name, &p.SKU, &p.Description, &p.PriceCents, &p.Currency, &p.Source,
		&p.PartnerCode, &p.PartnerProductID, &p.RequiresPrescription, &p.Active,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
