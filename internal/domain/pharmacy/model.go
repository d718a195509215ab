package pharmacy

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fulfillment partner codes. Each code selects the client dialect used to
// talk to that partner's API.
const (
	CodeIronSail = "ironsail"
	CodeMDI      = "mdi"
	CodeBeluga   = "beluga"
)

var validCodes = map[string]bool{
	CodeIronSail: true,
	CodeMDI:      true,
	CodeBeluga:   true,
}

// Dispatch statuses, roughly the partner-side fulfillment lifecycle.
const (
	StatusSubmitted  = "submitted"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusError      = "error"
)

var (
	ErrNotFound          = errors.New("dispatch not found")
	ErrPartnerNotFound   = errors.New("pharmacy partner not found")
	ErrInvalidPartner    = errors.New("invalid pharmacy partner")
	ErrPartnerInactive   = errors.New("pharmacy partner is inactive")
	ErrAlreadyDispatched = errors.New("order already dispatched")
	ErrNotDispatchable   = errors.New("order is not in a dispatchable state")
)

// Partner is a fulfillment pharmacy the platform can route orders to.
// Partners are platform-wide; clinics opt in per product catalog.
type Partner struct {
	ID         uuid.UUID `json:"id"`
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	APIBaseURL string    `json:"api_base_url"`
	APIKey     string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Partner) Validate() error {
	if !validCodes[p.Code] {
		return fmt.Errorf("unknown partner code %q", p.Code)
	}
	if p.Name == "" {
		return errors.New("name is required")
	}
	if p.APIBaseURL == "" {
		return errors.New("api_base_url is required")
	}
	return nil
}

// Dispatch tracks one order handed to a fulfillment partner.
type Dispatch struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	PartnerCode string     `json:"partner_code"`
	ExternalID  string     `json:"external_id"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	LastSyncAt  *time.Time `json:"last_sync_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
