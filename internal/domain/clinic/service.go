package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SchemaProvisioner creates the tenant schema for a new clinic. Wired to
// db.CreateClinicSchema in the server; a no-op in tests.
type SchemaProvisioner func(ctx context.Context, slug string) error

type Service struct {
	repo      Repository
	provision SchemaProvisioner
	logger    zerolog.Logger
}

func NewService(repo Repository, provision SchemaProvisioner, logger zerolog.Logger) *Service {
	return &Service{repo: repo, provision: provision, logger: logger}
}

// CreateClinic registers a tenant and provisions its schema. Provisioning
// runs after the directory row exists; a provisioning failure leaves the
// clinic inactive for a later retry via tenant create.
func (s *Service) CreateClinic(ctx context.Context, c *Clinic) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClinic, err)
	}
	if existing, err := s.repo.GetBySlug(ctx, c.Slug); err == nil && existing != nil {
		return ErrSlugTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	c.Active = false
	if err := s.repo.Create(ctx, c); err != nil {
		return err
	}

	if s.provision != nil {
		if err := s.provision(ctx, c.Slug); err != nil {
			s.logger.Error().Err(err).Str("clinic", c.Slug).Msg("schema provisioning failed, clinic left inactive")
			return fmt.Errorf("provision clinic schema: %w", err)
		}
	}

	c.Active = true
	return s.repo.Update(ctx, c)
}

func (s *Service) GetClinic(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetClinicBySlug(ctx context.Context, slug string) (*Clinic, error) {
	return s.repo.GetBySlug(ctx, slug)
}

func (s *Service) UpdateClinic(ctx context.Context, c *Clinic) error {
	current, err := s.repo.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	// Slug is immutable: it names the tenant schema.
	c.Slug = current.Slug
	if err := c.Validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidClinic, err)
	}
	return s.repo.Update(ctx, c)
}

// AssignTier attaches a tier to the clinic. A nil tierID detaches it.
func (s *Service) AssignTier(ctx context.Context, clinicID uuid.UUID, tierID *uuid.UUID) error {
	c, err := s.repo.GetByID(ctx, clinicID)
	if err != nil {
		return err
	}
	c.TierID = tierID
	return s.repo.Update(ctx, c)
}

// DeactivateClinic soft-deletes the tenant. The schema and its data are kept.
func (s *Service) DeactivateClinic(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}

func (s *Service) ListClinics(ctx context.Context, includeInactive bool, limit, offset int) ([]*Clinic, int, error) {
	return s.repo.List(ctx, includeInactive, limit, offset)
}

// EffectiveFeeBps resolves the platform fee for a clinic, falling back to the
// platform-wide default when the clinic inherits.
func (s *Service) EffectiveFeeBps(ctx context.Context, slug string, defaultBps int) (int, error) {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}
	if c.PlatformFeeBps >= 0 {
		return c.PlatformFeeBps, nil
	}
	return defaultBps, nil
}
