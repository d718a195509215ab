package patient

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

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPatient, err)
	}
	if existing, err := s.repo.GetByEmail(ctx, p.Email); err == nil && existing != nil {
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	p.Active = true
	return s.repo.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetOwnPatient resolves the caller's own record from the auth subject.
func (s *Service) GetOwnPatient(ctx context.Context, userID string) (*Patient, error) {
	return s.repo.GetByUserID(ctx, userID)
}

func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	current, err := s.repo.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPatient, err)
	}
	if p.Email != current.Email {
		if existing, err := s.repo.GetByEmail(ctx, p.Email); err == nil && existing != nil {
			return ErrEmailTaken
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, search, limit, offset)
}
