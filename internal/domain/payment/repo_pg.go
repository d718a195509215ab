package payment

import (
	"context"
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

const paymentCols = `id, order_id, charge_id, amount_cents, platform_fee_cents,
	clinic_share_cents, refunded_cents, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payment (
			id, order_id, charge_id, amount_cents, platform_fee_cents,
			clinic_share_cents, refunded_cents, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.OrderID, p.ChargeID, p.AmountCents, p.PlatformFeeCents,
		p.ClinicShareCents, p.RefundedCents, p.Status,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
}

func (r *repoPG) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

func (r *repoPG) GetByChargeID(ctx context.Context, chargeID string) (*Payment, error) {
	return scanPayment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE charge_id = $1`, chargeID))
}

func (r *repoPG) Update(ctx context.Context, p *Payment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payment SET
			charge_id=$2, amount_cents=$3, platform_fee_cents=$4,
			clinic_share_cents=$5, refunded_cents=$6, status=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.ChargeID, p.AmountCents, p.PlatformFeeCents,
		p.ClinicShareCents, p.RefundedCents, p.Status,
	)
	return err
}

func (r *repoPG) List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	where := `TRUE`
	args := []interface{}{}
	if status != "" {
		where = `status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payment WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + paymentCols + ` FROM payment WHERE ` + where + ` ORDER BY created_at DESC`
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

	var out []*Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.ChargeID, &p.AmountCents, &p.PlatformFeeCents,
			&p.ClinicShareCents, &p.RefundedCents, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	return out, total, nil
}

func (r *repoPG) CreateRefund(ctx context.Context, rf *Refund) error {
	rf.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO refund (id, payment_id, processor_refund_id, amount_cents, reversed_cents, reason)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		rf.ID, rf.PaymentID, rf.ProcessorRefundID, rf.AmountCents, rf.ReversedCents, rf.Reason,
	)
	return err
}

func (r *repoPG) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, payment_id, processor_refund_id, amount_cents, reversed_cents, reason, created_at
		FROM refund WHERE payment_id = $1 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Refund
	for rows.Next() {
		var rf Refund
		if err := rows.Scan(&rf.ID, &rf.PaymentID, &rf.ProcessorRefundID, &rf.AmountCents, &rf.ReversedCents, &rf.Reason, &rf.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rf)
	}
	return out, nil
}

func (r *repoPG) CreatePendingDebt(ctx context.Context, d *PendingDebt) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pending_debt (id, clinic_slug, payment_id, amount_cents, reason, status, attempts, last_error)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.ClinicSlug, d.PaymentID, d.AmountCents, d.Reason, d.Status, d.Attempts, d.LastError,
	)
	return err
}

func (r *repoPG) UpdatePendingDebt(ctx context.Context, d *PendingDebt) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE pending_debt SET
			status=$2, attempts=$3, last_error=$4, settled_at=$5
		WHERE id = $1`,
		d.ID, d.Status, d.Attempts, d.LastError, d.SettledAt,
	)
	return err
}

func (r *repoPG) ListPendingDebts(ctx context.Context, status string, limit, offset int) ([]*PendingDebt, int, error) {
	where := `TRUE`
	args := []interface{}{}
	if status != "" {
		where = `status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM pending_debt WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, clinic_slug, payment_id, amount_cents, reason, status, attempts, last_error, created_at, settled_at
		FROM pending_debt WHERE ` + where + ` ORDER BY created_at`
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

	var out []*PendingDebt
	for rows.Next() {
		var d PendingDebt
		if err := rows.Scan(&d.ID, &d.ClinicSlug, &d.PaymentID, &d.AmountCents, &d.Reason, &d.Status, &d.Attempts, &d.LastError, &d.CreatedAt, &d.SettledAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
	}
	return out, total, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.ChargeID, &p.AmountCents, &p.PlatformFeeCents,
		&p.ClinicShareCents, &p.RefundedCents, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
