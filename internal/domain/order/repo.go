package order

import (
	"context"

	"github.com/google/uuid"
)

type ListFilter struct {
	PatientID uuid.UUID
	Status    string
}

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error)
}
