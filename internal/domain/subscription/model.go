// Package subscription manages recurring product subscriptions and the
// renewal sweep that generates renewal orders.
package subscription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("subscription not found")
	ErrInvalid    = errors.New("invalid subscription")
	ErrNotActive  = errors.New("subscription is not active")
	ErrNotPaused  = errors.New("subscription is not paused")
	ErrTerminated = errors.New("subscription is cancelled")
)

// Subscription statuses.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusPastDue   = "past_due"
	StatusCancelled = "cancelled"
)

type Subscription struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patient_id"`
	ProductID     uuid.UUID  `json:"product_id"`
	Status        string     `json:"status"`
	IntervalDays  int        `json:"interval_days"`
	PriceCents    int64      `json:"price_cents"`
	NextRenewalAt time.Time  `json:"next_renewal_at"`
	PausedAt      *time.Time `json:"paused_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *Subscription) Validate() error {
	if s.PatientID == uuid.Nil {
		return errors.New("patient_id is required")
	}
	if s.ProductID == uuid.Nil {
		return errors.New("product_id is required")
	}
	if s.IntervalDays < 7 || s.IntervalDays > 365 {
		return errors.New("interval_days must be between 7 and 365")
	}
	if s.PriceCents <= 0 {
		return errors.New("price_cents must be positive")
	}
	return nil
}
