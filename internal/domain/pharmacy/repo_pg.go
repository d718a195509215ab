package pharmacy

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fusehealth/commerce-api/internal/platform/db"
)

// Partner rows live in the shared schema; dispatch rows live in the clinic's
// schema via the tenant search path.

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

const partnerCols = `id, code, name, api_base_url, api_key, active, created_at, updated_at`

func (r *repoPG) CreatePartner(ctx context.Context, p *Partner) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shared.pharmacy_partner (id, code, name, api_base_url, api_key, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Code, p.Name, p.APIBaseURL, p.APIKey, p.Active,
	)
	return err
}

func (r *repoPG) GetPartner(ctx context.Context, id uuid.UUID) (*Partner, error) {
	return scanPartner(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partnerCols+` FROM shared.pharmacy_partner WHERE id = $1`, id))
}

func (r *repoPG) GetPartnerByCode(ctx context.Context, code string) (*Partner, error) {
	return scanPartner(r.conn(ctx).QueryRow(ctx,
		`SELECT `+partnerCols+` FROM shared.pharmacy_partner WHERE code = $1`, code))
}

func (r *repoPG) UpdatePartner(ctx context.Context, p *Partner) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shared.pharmacy_partner SET
			name=$2, api_base_url=$3, api_key=$4, active=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.APIBaseURL, p.APIKey, p.Active,
	)
	return err
}

func (r *repoPG) ListPartners(ctx context.Context, activeOnly bool) ([]*Partner, error) {
	q := `SELECT ` + partnerCols + ` FROM shared.pharmacy_partner`
	if activeOnly {
		q += ` WHERE active`
	}
	rows, err := r.conn(ctx).Query(ctx, q+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var partners []*Partner
	for rows.Next() {
		var p Partner
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.APIBaseURL, &p.APIKey,
			&p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		partners = append(partners, &p)
	}
	return partners, nil
}

const dispatchCols = `id, order_id, partner_code, external_id, status,
	last_error, last_sync_at, created_at, updated_at`

func (r *repoPG) CreateDispatch(ctx context.Context, d *Dispatch) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO pharmacy_dispatch (id, order_id, partner_code, external_id, status, last_error)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		d.ID, d.OrderID, d.PartnerCode, d.ExternalID, d.Status, d.LastError,
	)
	return err
}

func (r *repoPG) GetDispatch(ctx context.Context, id uuid.UUID) (*Dispatch, error) {
	return scanDispatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dispatchCols+` FROM pharmacy_dispatch WHERE id = $1`, id))
}

func (r *repoPG) GetDispatchByOrder(ctx context.Context, orderID uuid.UUID) (*Dispatch, error) {
	return scanDispatch(r.conn(ctx).QueryRow(ctx,
		`SELECT `+dispatchCols+` FROM pharmacy_dispatch WHERE order_id = $1`, orderID))
}

func (r *repoPG) UpdateDispatch(ctx context.Context, d *Dispatch) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE pharmacy_dispatch SET
			external_id=$2, status=$3, last_error=$4, last_sync_at=$5, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.ExternalID, d.Status, d.LastError, d.LastSyncAt,
	)
	return err
}

func (r *repoPG) ListOpenDispatches(ctx context.Context, limit int) ([]*Dispatch, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+dispatchCols+` FROM pharmacy_dispatch
		WHERE status IN ($1, $2)
		ORDER BY created_at
		LIMIT $3`,
		StatusSubmitted, StatusProcessing, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dispatches []*Dispatch
	for rows.Next() {
		var d Dispatch
		if err := rows.Scan(&d.ID, &d.OrderID, &d.PartnerCode, &d.ExternalID, &d.Status,
			&d.LastError, &d.LastSyncAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		dispatches = append(dispatches, &d)
	}
	return dispatches, nil
}

func scanPartner(row pgx.Row) (*Partner, error) {
	var p Partner
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.APIBaseURL, &p.APIKey,
		&p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPartnerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDispatch(row pgx.Row) (*Dispatch, error) {
	var d Dispatch
	err := row.Scan(&d.ID, &d.OrderID, &d.PartnerCode, &d.ExternalID, &d.Status,
		&d.LastError, &d.LastSyncAt, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
