package tier

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, t *Tier) error
	GetByID(ctx context.Context, id uuid.UUID) (*Tier, error)
	GetByName(ctx context.Context, name string) (*Tier, error)
	Update(ctx context.Context, t *Tier) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Tier, int, error)
	AssignedClinicCount(ctx context.Context, id uuid.UUID) (int, error)
}
