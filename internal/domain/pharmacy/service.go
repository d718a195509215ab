package pharmacy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/events"
)

// Orders is the slice of the order service the dispatch flow needs.
type Orders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to string) error
}

type Service struct {
	repo      Repository
	client    Client
	orders    Orders
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, client Client, orders Orders, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		client:    client,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Service) CreatePartner(ctx context.Context, p *Partner) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPartner, err)
	}
	if existing, err := s.repo.GetPartnerByCode(ctx, p.Code); err == nil && existing != nil {
		return fmt.Errorf("%w: code %q already registered", ErrInvalidPartner, p.Code)
	}
	p.Active = true
	return s.repo.CreatePartner(ctx, p)
}

func (s *Service) GetPartner(ctx context.Context, id uuid.UUID) (*Partner, error) {
	return s.repo.GetPartner(ctx, id)
}

func (s *Service) UpdatePartner(ctx context.Context, p *Partner) error {
	current, err := s.repo.GetPartner(ctx, p.ID)
	if err != nil {
		return err
	}
	// The code selects the client dialect and is referenced by dispatch rows.
	p.Code = current.Code
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPartner, err)
	}
	return s.repo.UpdatePartner(ctx, p)
}

func (s *Service) ListPartners(ctx context.Context, activeOnly bool) ([]*Partner, error) {
	return s.repo.ListPartners(ctx, activeOnly)
}

// DispatchOrder hands a paid order to a fulfillment partner. The order moves
// to processing once the partner accepts it.
func (s *Service) DispatchOrder(ctx context.Context, clinicSlug string, orderID uuid.UUID, partnerCode string) (*Dispatch, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != order.StatusPaid && o.Status != order.StatusProcessing {
		return nil, fmt.Errorf("%w: order is %s", ErrNotDispatchable, o.Status)
	}
	if existing, err := s.repo.GetDispatchByOrder(ctx, orderID); err == nil && existing != nil {
		return nil, ErrAlreadyDispatched
	}

	partner, err := s.repo.GetPartnerByCode(ctx, partnerCode)
	if err != nil {
		return nil, err
	}
	if !partner.Active {
		return nil, ErrPartnerInactive
	}

	req := SubmitRequest{
		OrderID:         o.ID,
		PatientID:       o.PatientID,
		ShippingAddress: o.ShippingAddress,
		ShippingCity:    o.ShippingCity,
		ShippingState:   o.ShippingState,
		ShippingZip:     o.ShippingZip,
	}
	for _, it := range o.Items {
		req.Items = append(req.Items, SubmitItem{
			ProductID: it.ProductID,
			Name:      it.ProductName,
			Quantity:  it.Quantity,
		})
	}

	externalID, err := s.client.Submit(ctx, partner, req)
	if err != nil {
		return nil, err
	}

	d := &Dispatch{
		OrderID:     orderID,
		PartnerCode: partner.Code,
		ExternalID:  externalID,
		Status:      StatusSubmitted,
	}
	if err := s.repo.CreateDispatch(ctx, d); err != nil {
		return nil, err
	}

	if o.Status == order.StatusPaid {
		if err := s.orders.UpdateStatus(ctx, orderID, order.StatusProcessing); err != nil {
			s.logger.Warn().Err(err).Str("order_id", orderID.String()).
				Msg("order not moved to processing after dispatch")
		}
	}

	_ = s.publisher.Publish(ctx, events.TypePrescriptionSent, clinicSlug, map[string]interface{}{
		"order_id":     orderID,
		"partner_code": partner.Code,
		"external_id":  externalID,
	})
	return d, nil
}

func (s *Service) GetDispatchForOrder(ctx context.Context, orderID uuid.UUID) (*Dispatch, error) {
	return s.repo.GetDispatchByOrder(ctx, orderID)
}

// SyncStatuses polls partners for every open dispatch and mirrors partner
// progress onto the order. Run by the status-sync cron job. Returns the
// number of dispatches whose status changed.
func (s *Service) SyncStatuses(ctx context.Context, clinicSlug string) (int, error) {
	open, err := s.repo.ListOpenDispatches(ctx, 100)
	if err != nil {
		return 0, err
	}

	partners := map[string]*Partner{}
	updated := 0
	for _, d := range open {
		partner, ok := partners[d.PartnerCode]
		if !ok {
			partner, err = s.repo.GetPartnerByCode(ctx, d.PartnerCode)
			if err != nil {
				s.logger.Error().Err(err).Str("partner_code", d.PartnerCode).
					Msg("status sync skipped: partner lookup failed")
				continue
			}
			partners[d.PartnerCode] = partner
		}

		raw, err := s.client.GetStatus(ctx, partner, d.ExternalID)
		now := s.now().UTC()
		d.LastSyncAt = &now
		if err != nil {
			d.LastError = err.Error()
			if uerr := s.repo.UpdateDispatch(ctx, d); uerr != nil {
				s.logger.Error().Err(uerr).Str("dispatch_id", d.ID.String()).Msg("dispatch not updated")
			}
			continue
		}
		d.LastError = ""

		next := NormalizeStatus(raw)
		changed := next != d.Status
		d.Status = next
		if err := s.repo.UpdateDispatch(ctx, d); err != nil {
			s.logger.Error().Err(err).Str("dispatch_id", d.ID.String()).Msg("dispatch not updated")
			continue
		}
		if !changed {
			continue
		}
		updated++

		switch next {
		case StatusShipped:
			s.mirrorOrderStatus(ctx, d.OrderID, order.StatusShipped)
		case StatusDelivered:
			s.mirrorOrderStatus(ctx, d.OrderID, order.StatusDelivered)
		case StatusError:
			s.logger.Error().
				Str("order_id", d.OrderID.String()).
				Str("partner_code", d.PartnerCode).
				Str("clinic", clinicSlug).
				Msg("partner reported fulfillment error")
		}
	}
	return updated, nil
}

func (s *Service) mirrorOrderStatus(ctx context.Context, orderID uuid.UUID, to string) {
	if err := s.orders.UpdateStatus(ctx, orderID, to); err != nil {
		s.logger.Warn().Err(err).
			Str("order_id", orderID.String()).
			Str("to", to).
			Msg("order status not mirrored from dispatch")
	}
}
