package product

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

func (s *Service) CreateProduct(ctx context.Context, p *Product) error {
	if p.Currency == "" {
		p.Currency = "usd"
	}
	if p.Source == "" {
		p.Source = SourceInternal
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, err)
	}
	if existing, err := s.repo.GetBySKU(ctx, p.SKU); err == nil && existing != nil {
		return ErrSKUTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	p.Active = true
	return s.repo.Create(ctx, p)
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateProduct(ctx context.Context, p *Product) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, err)
	}
	if p.SKU != current.SKU {
		if existing, err := s.repo.GetBySKU(ctx, p.SKU); err == nil && existing != nil {
			return ErrSKUTaken
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, f ListFilter, limit, offset int) ([]*Product, int, error) {
	return s.repo.List(ctx, f, limit, offset)
}

// ImportPartnerProduct mirrors an item from a partner catalog into the
// clinic's own catalog. Re-importing the same partner item updates price and
// description in place.
func (s *Service) ImportPartnerProduct(ctx context.Context, p *Product) error {
	p.Source = SourcePartner
	if p.Currency == "" {
		p.Currency = "usd"
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidProduct, err)
	}

	existing, err := s.repo.GetBySKU(ctx, p.SKU)
	switch {
	case err == nil:
		existing.Name = p.Name
		existing.Description = p.Description
		existing.PriceCents = p.PriceCents
		existing.PartnerProductID = p.PartnerProductID
		*p = *existing
		return s.repo.Update(ctx, existing)
	case errors.Is(err, ErrNotFound):
		p.Active = true
		return s.repo.Create(ctx, p)
	default:
		return err
	}
}
