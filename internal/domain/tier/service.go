package tier

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateTier(ctx context.Context, t *Tier) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTier, err)
	}
	if existing, err := s.repo.GetByName(ctx, t.Name); err == nil && existing != nil {
		return ErrNameTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	t.Active = true
	return s.repo.Create(ctx, t)
}

func (s *Service) GetTier(ctx context.Context, id uuid.UUID) (*Tier, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateTier(ctx context.Context, t *Tier) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTier, err)
	}
	if _, err := s.repo.GetByID(ctx, t.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, t)
}

// DeleteTier removes a tier. Tiers still assigned to a clinic cannot be
// deleted; deactivate them instead.
func (s *Service) DeleteTier(ctx context.Context, id uuid.UUID) error {
	n, err := s.repo.AssignedClinicCount(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrTierAssigned
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListTiers(ctx context.Context, limit, offset int) ([]*Tier, int, error) {
	return s.repo.List(ctx, limit, offset)
}
