package affiliate

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Affiliate) error
	GetByID(ctx context.Context, id uuid.UUID) (*Affiliate, error)
	GetByCode(ctx context.Context, code string) (*Affiliate, error)
	Update(ctx context.Context, a *Affiliate) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Affiliate, int, error)

	CreateCommission(ctx context.Context, c *Commission) error
	GetCommission(ctx context.Context, id uuid.UUID) (*Commission, error)
	UpdateCommission(ctx context.Context, c *Commission) error
	ListCommissions(ctx context.Context, affiliateID uuid.UUID, status string, limit, offset int) ([]*Commission, int, error)
	CommissionTotal(ctx context.Context, affiliateID uuid.UUID, status string) (int64, error)
}
