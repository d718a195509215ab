// Package payments defines the payment-processor boundary. The platform
// charges patients on the processor's connected account for each clinic and
// keeps only a ledger of its own; refunds and compensating transfers go
// through this interface.
package payments

import (
	"context"
	"errors"
)

// Processor errors surfaced to the refund flow.
var (
	ErrChargeNotFound   = errors.New("charge not found")
	ErrAlreadyRefunded  = errors.New("charge is already fully refunded")
	ErrTransferRejected = errors.New("transfer rejected by processor")
)

// RefundParams describes a refund request. AmountCents of 0 means a full
// refund. ReverseTransfer also pulls the clinic's share back from its
// connected account as part of the same processor operation.
type RefundParams struct {
	ChargeID        string
	AmountCents     int64
	ReverseTransfer bool
	Reason          string
}

// Refund is the processor's view of a completed refund.
type Refund struct {
	ID             string `json:"id"`
	ChargeID       string `json:"charge_id"`
	AmountCents    int64  `json:"amount_cents"`
	ReversedCents  int64  `json:"reversed_cents"` // recovered from the connected account
	Status         string `json:"status"`
}

// TransferParams describes a standalone transfer between the platform account
// and a clinic's connected account. Negative flows (debits) use a positive
// amount with the direction implied by the endpoint.
type TransferParams struct {
	DestinationAccount string
	AmountCents        int64
	Description        string
}

// Transfer is the processor's view of a completed transfer.
type Transfer struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

// Processor is the minimal surface of the payment processor the platform
// depends on.
type Processor interface {
	Refund(ctx context.Context, params RefundParams) (*Refund, error)
	Transfer(ctx context.Context, params TransferParams) (*Transfer, error)
}
