package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreatePartner(ctx context.Context, p *Partner) error
	GetPartner(ctx context.Context, id uuid.UUID) (*Partner, error)
	GetPartnerByCode(ctx context.Context, code string) (*Partner, error)
	UpdatePartner(ctx context.Context, p *Partner) error
	ListPartners(ctx context.Context, activeOnly bool) ([]*Partner, error)

	CreateDispatch(ctx context.Context, d *Dispatch) error
	GetDispatch(ctx context.Context, id uuid.UUID) (*Dispatch, error)
	GetDispatchByOrder(ctx context.Context, orderID uuid.UUID) (*Dispatch, error)
	UpdateDispatch(ctx context.Context, d *Dispatch) error
	ListOpenDispatches(ctx context.Context, limit int) ([]*Dispatch, error)
}
