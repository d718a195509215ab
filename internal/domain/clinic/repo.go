package clinic

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Clinic) error
	GetByID(ctx context.Context, id uuid.UUID) (*Clinic, error)
	GetBySlug(ctx context.Context, slug string) (*Clinic, error)
	Update(ctx context.Context, c *Clinic) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, includeInactive bool, limit, offset int) ([]*Clinic, int, error)
}
