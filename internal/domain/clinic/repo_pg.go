package clinic

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

const clinicCols = `id, slug, name, email, logo_url, tier_id, processor_account_id,
	platform_fee_bps, active, created_at, updated_at, deleted_at`

func (r *repoPG) Create(ctx context.Context, c *Clinic) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO shared.clinic (
			id, slug, name, email, logo_url, tier_id, processor_account_id,
			platform_fee_bps, active
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Slug, c.Name, c.Email, c.LogoURL, c.TierID, c.ProcessorAcctID,
		c.PlatformFeeBps, c.Active,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicCols+` FROM shared.clinic WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *repoPG) GetBySlug(ctx context.Context, slug string) (*Clinic, error) {
	return scanClinic(r.conn(ctx).QueryRow(ctx,
		`SELECT `+clinicCols+` FROM shared.clinic WHERE slug = $1 AND deleted_at IS NULL`, slug))
}

func (r *repoPG) Update(ctx context.Context, c *Clinic) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE shared.clinic SET
			name=$2, email=$3, logo_url=$4, tier_id=$5, processor_account_id=$6,
			platform_fee_bps=$7, active=$8, updated_at=NOW()
		WHERE id = $1 AND deleted_at IS NULL`,
		c.ID, c.Name, c.Email, c.LogoURL, c.TierID, c.ProcessorAcctID,
		c.PlatformFeeBps, c.Active,
	)
	return err
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE shared.clinic SET deleted_at = NOW(), active = FALSE
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, includeInactive bool, limit, offset int) ([]*Clinic, int, error) {
	where := `deleted_at IS NULL`
	if !includeInactive {
		where += ` AND active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM shared.clinic WHERE `+where).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+clinicCols+` FROM shared.clinic WHERE `+where+` ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var clinics []*Clinic
	for rows.Next() {
		var c Clinic
		if err := rows.Scan(
			&c.ID, &c.Slug, &c.Name, &c.Email, &c.LogoURL, &c.TierID, &c.ProcessorAcctID,
			&c.PlatformFeeBps, &c.Active, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
		); err != nil {
			return nil, 0, err
		}
		clinics = append(clinics, &c)
	}
	return clinics, total, nil
}

func scanClinic(row pgx.Row) (*Clinic, error) {
	var c Clinic
	err := row.Scan(
		&c.ID, &c.Slug, &c.Name, &c.Email, &c.LogoURL, &c.TierID, &c.ProcessorAcctID,
		&c.PlatformFeeBps, &c.Active, &c.CreatedAt, &c.UpdatedAt, &c.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
