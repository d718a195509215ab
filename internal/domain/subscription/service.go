package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/events"
)

// OrderCreator creates renewal orders. Satisfied by the order service.
type OrderCreator interface {
	CreateOrder(ctx context.Context, clinicSlug string, o *order.Order) error
}

// ProductCatalog resolves product details for renewal line items.
type ProductCatalog interface {
	ProductName(ctx context.Context, id uuid.UUID) (string, error)
}

type Service struct {
	repo      Repository
	orders    OrderCreator
	catalog   ProductCatalog
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, orders OrderCreator, catalog ProductCatalog, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		orders:    orders,
		catalog:   catalog,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) CreateSubscription(ctx context.Context, sub *Subscription) error {
	if err := sub.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, err)
	}
	sub.Status = StatusActive
	if sub.NextRenewalAt.IsZero() {
		sub.NextRenewalAt = s.now().UTC().AddDate(0, 0, sub.IntervalDays)
	}
	return s.repo.Create(ctx, sub)
}

func (s *Service) GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.repo.GetByID(ctx, id)
}

// Pause stops renewals. The next renewal date freezes until Resume.
func (s *Service) Pause(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == StatusCancelled {
		return ErrTerminated
	}
	if sub.Status != StatusActive && sub.Status != StatusPastDue {
		return ErrNotActive
	}
	now := s.now().UTC()
	sub.Status = StatusPaused
	sub.PausedAt = &now
	return s.repo.Update(ctx, sub)
}

// Resume reactivates a paused subscription and pushes the renewal date out
// by the time spent paused.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == StatusCancelled {
		return ErrTerminated
	}
	if sub.Status != StatusPaused {
		return ErrNotPaused
	}
	now := s.now().UTC()
	if sub.PausedAt != nil {
		sub.NextRenewalAt = sub.NextRenewalAt.Add(now.Sub(*sub.PausedAt))
	}
	sub.Status = StatusActive
	sub.PausedAt = nil
	return s.repo.Update(ctx, sub)
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == StatusCancelled {
		return ErrTerminated
	}
	now := s.now().UTC()
	sub.Status = StatusCancelled
	sub.CancelledAt = &now
	return s.repo.Update(ctx, sub)
}

func (s *Service) ListSubscriptions(ctx context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*Subscription, int, error) {
	return s.repo.List(ctx, patientID, status, limit, offset)
}

// RenewDue sweeps subscriptions whose renewal date has passed, creating a
// pending renewal order for each and advancing the renewal date. Payment is
// collected asynchronously; the invoice webhook marks the order paid. Run by
// the renewal cron job. Returns the number of renewals generated.
func (s *Service) RenewDue(ctx context.Context, clinicSlug string) (int, error) {
	due, err := s.repo.ListDue(ctx, s.now().UTC(), 100)
	if err != nil {
		return 0, err
	}

	renewed := 0
	for _, sub := range due {
		name, err := s.catalog.ProductName(ctx, sub.ProductID)
		if err != nil {
			s.logger.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Msg("renewal skipped: product lookup failed")
			continue
		}

		o := &order.Order{
			PatientID:      sub.PatientID,
			SubscriptionID: &sub.ID,
			Items: []order.Item{{
				ProductID:      sub.ProductID,
				ProductName:    name,
				Quantity:       1,
				UnitPriceCents: sub.PriceCents,
			}},
		}
		if err := s.orders.CreateOrder(ctx, clinicSlug, o); err != nil {
			s.logger.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Msg("renewal order not created")
			continue
		}

		sub.NextRenewalAt = sub.NextRenewalAt.AddDate(0, 0, sub.IntervalDays)
		if err := s.repo.Update(ctx, sub); err != nil {
			s.logger.Error().Err(err).
				Str("subscription_id", sub.ID.String()).
				Msg("renewal date not advanced")
			continue
		}

		_ = s.publisher.Publish(ctx, events.TypeSubscriptionRenewed, clinicSlug, map[string]interface{}{
			"subscription_id": sub.ID,
			"order_id":        o.ID,
		})
		renewed++
	}
	return renewed, nil
}

// MarkPastDue flags a subscription whose renewal invoice failed. Called from
// the payment webhook.
func (s *Service) MarkPastDue(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusActive {
		return nil
	}
	sub.Status = StatusPastDue
	return s.repo.Update(ctx, sub)
}

// MarkRecovered returns a past_due subscription to active once a renewal
// payment goes through. A no-op for any other status.
func (s *Service) MarkRecovered(ctx context.Context, id uuid.UUID) error {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status != StatusPastDue {
		return nil
	}
	sub.Status = StatusActive
	return s.repo.Update(ctx, sub)
}
