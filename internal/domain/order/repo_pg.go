package order

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

const orderCols = `id, patient_id, subscription_id, status, total_cents, currency,
	shipping_address, shipping_city, shipping_state, shipping_zip,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, o *Order) error {
	o.ID = uuid.New()
	q := r.conn(ctx)

	_, err := q.Exec(ctx, `
		INSERT INTO "order" (
			id, patient_id, subscription_id, status, total_cents, currency,
			shipping_address, shipping_city, shipping_state, shipping_zip
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.PatientID, o.SubscriptionID, o.Status, o.TotalCents, o.Currency,
		o.ShippingAddress, o.ShippingCity, o.ShippingState, o.ShippingZip,
	)
	if err != nil {
		return err
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.New()
		it.OrderID = o.ID
		if _, err := q.Exec(ctx, `
			INSERT INTO order_item (id, order_id, product_id, product_name, quantity, unit_price_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			it.ID, it.OrderID, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, err := scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM "order" WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE "order" SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	where := `TRUE`
	args := []interface{}{}

	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where += fmt.Sprintf(" AND patient_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM "order" WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitPos := len(args) + 1
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx,
		fmt.Sprintf(`SELECT %s FROM "order" WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
			orderCols, where, limitPos, limitPos+1),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(
			&o.ID, &o.PatientID, &o.SubscriptionID, &o.Status, &o.TotalCents, &o.Currency,
			&o.ShippingAddress, &o.ShippingCity, &o.ShippingState, &o.ShippingZip,
			&o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		orders = append(orders, &o)
	}
	rows.Close()

	// Lists omit line items; GetByID loads them.
	return orders, total, nil
}

func (r *repoPG) items(ctx context.Context, orderID uuid.UUID) ([]Item, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		FROM order_item WHERE order_id = $1 ORDER BY product_name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.PatientID, &o.SubscriptionID, &o.Status, &o.TotalCents, &o.Currency,
		&o.ShippingAddress, &o.ShippingCity, &o.ShippingState, &o.ShippingZip,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
