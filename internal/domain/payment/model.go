// Package payment keeps the platform's ledger of charges, refunds, and
// pending clinic debts, and implements the refund reconciliation flow.
package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("payment not found")
	ErrNotRefundable  = errors.New("payment is not refundable")
	ErrAmountTooLarge = errors.New("refund amount exceeds refundable balance")
	ErrInvalidAmount  = errors.New("refund amount must be positive")
)

// Payment statuses.
const (
	StatusPending           = "pending"
	StatusCaptured          = "captured"
	StatusFailed            = "failed"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

// Pending debt statuses.
const (
	DebtPending = "pending"
	DebtSettled = "settled"
)

// Payment is the ledger record for one charge. ClinicShareCents is the
// portion transferred to the clinic's connected account at capture time;
// PlatformFeeCents is what the platform kept.
type Payment struct {
	ID               uuid.UUID `json:"id"`
	OrderID          uuid.UUID `json:"order_id"`
	ChargeID         string    `json:"charge_id"`
	AmountCents      int64     `json:"amount_cents"`
	PlatformFeeCents int64     `json:"platform_fee_cents"`
	ClinicShareCents int64     `json:"clinic_share_cents"`
	RefundedCents    int64     `json:"refunded_cents"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RefundableCents is the balance still eligible for refund.
func (p *Payment) RefundableCents() int64 {
	return p.AmountCents - p.RefundedCents
}

// Refund is the ledger record for one refund against a payment.
type Refund struct {
	ID                uuid.UUID `json:"id"`
	PaymentID         uuid.UUID `json:"payment_id"`
	ProcessorRefundID string    `json:"processor_refund_id"`
	AmountCents       int64     `json:"amount_cents"`
	ReversedCents     int64     `json:"reversed_cents"`
	Reason            string    `json:"reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// PendingDebt records money a clinic owes the platform after a refund whose
// transfer reversal could not recover the clinic's full share. A cron job
// retries settling these.
type PendingDebt struct {
	ID          uuid.UUID  `json:"id"`
	ClinicSlug  string     `json:"clinic_slug"`
	PaymentID   uuid.UUID  `json:"payment_id"`
	AmountCents int64      `json:"amount_cents"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	SettledAt   *time.Time `json:"settled_at,omitempty"`
}
