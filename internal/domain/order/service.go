package order

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/fusehealth/commerce-api/internal/platform/events"
)

type Service struct {
	repo      Repository
	publisher events.Publisher
}

func NewService(repo Repository, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{repo: repo, publisher: publisher}
}

// CreateOrder validates the cart, recomputes the total server-side, and
// stores the order in pending status awaiting payment.
func (s *Service) CreateOrder(ctx context.Context, clinicSlug string, o *Order) error {
	if err := o.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, err)
	}
	if o.Currency == "" {
		o.Currency = "usd"
	}
	o.Status = StatusPending
	o.TotalCents = o.ComputeTotal()

	if err := s.repo.Create(ctx, o); err != nil {
		return err
	}

	_ = s.publisher.Publish(ctx, events.TypeOrderPlaced, clinicSlug, map[string]interface{}{
		"order_id":    o.ID,
		"patient_id":  o.PatientID,
		"total_cents": o.TotalCents,
	})
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus enforces the order lifecycle.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to string) error {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	return s.repo.UpdateStatus(ctx, id, to)
}

// MarkPaid is called by the payment webhook when a charge succeeds.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return s.UpdateStatus(ctx, id, StatusPaid)
}

func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID) error {
	return s.UpdateStatus(ctx, id, StatusCancelled)
}

func (s *Service) ListOrders(ctx context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}
