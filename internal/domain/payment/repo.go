package payment

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Payment, error)
	GetByChargeID(ctx context.Context, chargeID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
	List(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error)

	CreateRefund(ctx context.Context, r *Refund) error
	ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error)

	CreatePendingDebt(ctx context.Context, d *PendingDebt) error
	UpdatePendingDebt(ctx context.Context, d *PendingDebt) error
	ListPendingDebts(ctx context.Context, status string, limit, offset int) ([]*PendingDebt, int, error)
}
