// Package clinic manages Brand/Clinic tenants: the organizations reselling
// health products through the platform. Each clinic gets its own database
// schema; the clinic directory itself lives in the shared schema.
package clinic

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("clinic not found")
	ErrSlugTaken     = errors.New("clinic slug already in use")
	ErrInvalidClinic = errors.New("invalid clinic")
)

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// Clinic is a tenant brand. PlatformFeeBps overrides the platform-wide fee
// when set (>= 0); -1 means inherit the default.
type Clinic struct {
	ID              uuid.UUID  `json:"id"`
	Slug            string     `json:"slug"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	LogoURL         string     `json:"logo_url"`
	TierID          *uuid.UUID `json:"tier_id"`
	ProcessorAcctID string     `json:"processor_account_id"`
	PlatformFeeBps  int        `json:"platform_fee_bps"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

func (c *Clinic) Validate() error {
	if !slugPattern.MatchString(c.Slug) {
		return errors.New("slug must be lowercase letters, digits, underscores, starting with a letter")
	}
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.PlatformFeeBps < -1 || c.PlatformFeeBps > 10000 {
		return errors.New("platform_fee_bps must be -1 (inherit) or between 0 and 10000")
	}
	return nil
}
