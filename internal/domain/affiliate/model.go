package affiliate

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Commission statuses. Pending commissions await clinic review; approved
// commissions are payable; paid is terminal.
const (
	CommissionPending  = "pending"
	CommissionApproved = "approved"
	CommissionPaid     = "paid"
)

var (
	ErrNotFound           = errors.New("affiliate not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrCodeTaken          = errors.New("referral code already in use")
	ErrInvalidAffiliate   = errors.New("invalid affiliate")
	ErrInactiveAffiliate  = errors.New("affiliate is inactive")
	ErrNotApprovable      = errors.New("commission is not pending")
	ErrNotPayable         = errors.New("commission is not approved")
)

// Affiliate is a referral partner. Orders placed with the affiliate's code
// accrue commissions at CommissionBps of the order total.
type Affiliate struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Code          string     `json:"code"`
	CommissionBps int        `json:"commission_bps"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeletedAt     *time.Time `json:"deleted_at,omitempty"`
}

func (a *Affiliate) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return errors.New("name is required")
	}
	if !strings.Contains(a.Email, "@") {
		return errors.New("valid email is required")
	}
	if len(a.Code) < 3 || len(a.Code) > 32 {
		return errors.New("code must be 3-32 characters")
	}
	if a.CommissionBps < 0 || a.CommissionBps > 5000 {
		return errors.New("commission_bps must be 0-5000")
	}
	return nil
}

// Commission is one affiliate payout accrued from a referred order.
type Commission struct {
	ID          uuid.UUID  `json:"id"`
	AffiliateID uuid.UUID  `json:"affiliate_id"`
	OrderID     uuid.UUID  `json:"order_id"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
