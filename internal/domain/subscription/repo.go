package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	List(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*Subscription, int, error)
	ListDue(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error)
}
