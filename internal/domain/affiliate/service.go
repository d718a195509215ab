package affiliate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

func (s *Service) CreateAffiliate(ctx context.Context, a *Affiliate) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAffiliate, err)
	}
	if existing, err := s.repo.GetByCode(ctx, a.Code); err == nil && existing != nil {
		return ErrCodeTaken
	}
	a.Active = true
	return s.repo.Create(ctx, a)
}

func (s *Service) GetAffiliate(ctx context.Context, id uuid.UUID) (*Affiliate, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateAffiliate(ctx context.Context, a *Affiliate) error {
	current, err := s.repo.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAffiliate, err)
	}
	if a.Code != current.Code {
		if existing, err := s.repo.GetByCode(ctx, a.Code); err == nil && existing != nil {
			return ErrCodeTaken
		}
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) DeleteAffiliate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListAffiliates(ctx context.Context, limit, offset int) ([]*Affiliate, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// RecordCommission accrues a pending commission for a referred order.
// Called when the order's payment is captured. The amount floors in the
// platform's favor.
func (s *Service) RecordCommission(ctx context.Context, code string, orderID uuid.UUID, orderTotalCents int64) (*Commission, error) {
	a, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, ErrInactiveAffiliate
	}

	c := &Commission{
		AffiliateID: a.ID,
		OrderID:     orderID,
		AmountCents: orderTotalCents * int64(a.CommissionBps) / 10000,
		Status:      CommissionPending,
	}
	if err := s.repo.CreateCommission(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("affiliate_id", a.ID.String()).
		Str("order_id", orderID.String()).
		Int64("amount_cents", c.AmountCents).
		Msg("commission recorded")
	return c, nil
}

func (s *Service) ApproveCommission(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != CommissionPending {
		return ErrNotApprovable
	}
	c.Status = CommissionApproved
	return s.repo.UpdateCommission(ctx, c)
}

func (s *Service) MarkCommissionPaid(ctx context.Context, id uuid.UUID) error {
	c, err := s.repo.GetCommission(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != CommissionApproved {
		return ErrNotPayable
	}
	now := s.now().UTC()
	c.Status = CommissionPaid
	c.PaidAt = &now
	return s.repo.UpdateCommission(ctx, c)
}

func (s *Service) ListCommissions(ctx context.Context, affiliateID uuid.UUID, status string, limit, offset int) ([]*Commission, int, error) {
	return s.repo.ListCommissions(ctx, affiliateID, status, limit, offset)
}

// Balance summarizes what an affiliate is owed.
type Balance struct {
	PendingCents  int64 `json:"pending_cents"`
	ApprovedCents int64 `json:"approved_cents"`
	PaidCents     int64 `json:"paid_cents"`
}

func (s *Service) AffiliateBalance(ctx context.Context, affiliateID uuid.UUID) (*Balance, error) {
	if _, err := s.repo.GetByID(ctx, affiliateID); err != nil {
		return nil, err
	}
	var b Balance
	var err error
	if b.PendingCents, err = s.repo.CommissionTotal(ctx, affiliateID, CommissionPending); err != nil {
		return nil, err
	}
	if b.ApprovedCents, err = s.repo.CommissionTotal(ctx, affiliateID, CommissionApproved); err != nil {
		return nil, err
	}
	if b.PaidCents, err = s.repo.CommissionTotal(ctx, affiliateID, CommissionPaid); err != nil {
		return nil, err
	}
	return &b, nil
}
