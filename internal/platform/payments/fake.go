package payments

import (
	"context"
	"fmt"
	"sync"
)

// FakeProcessor is an in-memory Processor for tests and local development.
// Charges are seeded with AddCharge; refunds and transfers are recorded so
// tests can assert on them.
type FakeProcessor struct {
	mu        sync.Mutex
	charges   map[string]int64 // charge id -> remaining refundable cents
	Refunds   []RefundParams
	Transfers []TransferParams

	// FailTransfers makes every Transfer call fail, exercising the
	// pending-debt fallback.
	FailTransfers bool
	// ReversalShortfallCents reduces the reported reversed amount below the
	// refunded amount, simulating a partially recoverable transfer.
	ReversalShortfallCents int64

	seq int
}

// NewFakeProcessor creates an empty fake.
func NewFakeProcessor() *FakeProcessor {
	return &FakeProcessor{charges: make(map[string]int64)}
}

// AddCharge seeds a refundable charge.
func (f *FakeProcessor) AddCharge(chargeID string, amountCents int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges[chargeID] = amountCents
}

func (f *FakeProcessor) Refund(_ context.Context, params RefundParams) (*Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	remaining, ok := f.charges[params.ChargeID]
	if !ok {
		return nil, ErrChargeNotFound
	}
	if remaining == 0 {
		return nil, ErrAlreadyRefunded
	}

	amount := params.AmountCents
	if amount == 0 || amount > remaining {
		amount = remaining
	}
	f.charges[params.ChargeID] = remaining - amount
	f.Refunds = append(f.Refunds, params)

	reversed := int64(0)
	if params.ReverseTransfer {
		reversed = amount - f.ReversalShortfallCents
		if reversed < 0 {
			reversed = 0
		}
	}

	f.seq++
	return &Refund{
		ID:            fmt.Sprintf("re_%d", f.seq),
		ChargeID:      params.ChargeID,
		AmountCents:   amount,
		ReversedCents: reversed,
		Status:        "succeeded",
	}, nil
}

func (f *FakeProcessor) Transfer(_ context.Context, params TransferParams) (*Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailTransfers {
		return nil, fmt.Errorf("%w: connected account balance too low", ErrTransferRejected)
	}

	f.Transfers = append(f.Transfers, params)
	f.seq++
	return &Transfer{
		ID:          fmt.Sprintf("tr_%d", f.seq),
		AmountCents: params.AmountCents,
		Status:      "paid",
	}, nil
}
