// Package tier manages TierConfiguration records: the feature-flag bundles
// attached to a clinic's pricing plan.
package tier

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("tier not found")
	ErrNameTaken    = errors.New("tier name already in use")
	ErrInvalidTier  = errors.New("invalid tier configuration")
	ErrTierAssigned = errors.New("tier is assigned to one or more clinics")
)

// Tier is a subscription-plan bundle. Feature flags gate portal capabilities
// for clinics on the plan.
type Tier struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	PriceCents       int64     `json:"price_cents"`
	AnalyticsAccess  bool      `json:"analytics_access"`
	CustomPortal     bool      `json:"custom_portal"`
	PriorityShipping bool      `json:"priority_shipping"`
	MaxProducts      int       `json:"max_products"`
	Active           bool      `json:"active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Validate checks required fields before persistence.
func (t *Tier) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if t.PriceCents < 0 {
		return errors.New("price_cents must not be negative")
	}
	if t.MaxProducts < 0 {
		return errors.New("max_products must not be negative")
	}
	return nil
}
