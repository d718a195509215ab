package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/events"
	"github.com/fusehealth/commerce-api/internal/platform/payments"
)

// Orders is the slice of the order service the refund flow needs.
type Orders interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to string) error
}

// ClinicAccounts resolves a clinic's connected processor account for
// compensating transfers.
type ClinicAccounts interface {
	ProcessorAccount(ctx context.Context, slug string) (string, error)
}

type Service struct {
	repo      Repository
	orders    Orders
	processor payments.Processor
	accounts  ClinicAccounts
	publisher events.Publisher
	logger    zerolog.Logger
}

func NewService(repo Repository, orders Orders, processor payments.Processor, accounts ClinicAccounts, publisher events.Publisher, logger zerolog.Logger) *Service {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		orders:    orders,
		processor: processor,
		accounts:  accounts,
		publisher: publisher,
		logger:    logger,
	}
}

// RecordCapture stores the ledger row for a captured charge. Called from the
// payment webhook. feeBps is the platform fee applied to this clinic.
func (s *Service) RecordCapture(ctx context.Context, orderID uuid.UUID, chargeID string, amountCents int64, feeBps int) (*Payment, error) {
	fee := amountCents * int64(feeBps) / 10000
	p := &Payment{
		OrderID:          orderID,
		ChargeID:         chargeID,
		AmountCents:      amountCents,
		PlatformFeeCents: fee,
		ClinicShareCents: amountCents - fee,
		Status:           StatusCaptured,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.orders.UpdateStatus(ctx, orderID, order.StatusPaid); err != nil {
		s.logger.Warn().Err(err).Str("order_id", orderID.String()).Msg("order not marked paid after capture")
	}
	return p, nil
}

// RefundResult reports what the refund flow did, including whether the
// clinic's share could be recovered.
type RefundResult struct {
	Refund       *Refund      `json:"refund"`
	Payment      *Payment     `json:"payment"`
	DebtRecorded *PendingDebt `json:"debt_recorded,omitempty"`
}

// RefundOrder refunds an order's captured payment. amountCents of 0 refunds
// the full refundable balance. The processor reverses the clinic's transfer
// as part of the refund; when the reversal recovers less than the clinic's
// proportional share of the refund, a compensating transfer is attempted,
// and if that transfer fails the shortfall is recorded as a pending debt
// rather than failing the refund.
func (s *Service) RefundOrder(ctx context.Context, clinicSlug string, orderID uuid.UUID, amountCents int64, reason string) (*RefundResult, error) {
	if _, err := s.orders.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusCaptured && p.Status != StatusPartiallyRefunded {
		return nil, fmt.Errorf("%w: payment status is %s", ErrNotRefundable, p.Status)
	}

	if amountCents == 0 {
		amountCents = p.RefundableCents()
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountCents > p.RefundableCents() {
		return nil, ErrAmountTooLarge
	}

	pr, err := s.processor.Refund(ctx, payments.RefundParams{
		ChargeID:        p.ChargeID,
		AmountCents:     amountCents,
		ReverseTransfer: true,
		Reason:          reason,
	})
	if err != nil {
		if errors.Is(err, payments.ErrAlreadyRefunded) {
			return nil, fmt.Errorf("%w: %s", ErrNotRefundable, err)
		}
		return nil, fmt.Errorf("processor refund: %w", err)
	}

	// The clinic owes back its proportional share of the refunded amount.
	// Integer cents throughout; the division floors in the clinic's favor.
	clinicShare := amountCents * p.ClinicShareCents / p.AmountCents
	shortfall := clinicShare - pr.ReversedCents

	result := &RefundResult{}

	if shortfall > 0 {
		if debt := s.recoverShortfall(ctx, clinicSlug, p, shortfall, reason); debt != nil {
			result.DebtRecorded = debt
		}
	}

	rf := &Refund{
		PaymentID:         p.ID,
		ProcessorRefundID: pr.ID,
		AmountCents:       amountCents,
		ReversedCents:     pr.ReversedCents,
		Reason:            reason,
	}
	if err := s.settleRefund(ctx, clinicSlug, p, rf, result); err != nil {
		return nil, err
	}
	return result, nil
}

// RecordExternalRefund records a refund initiated on the processor's side
// (dashboard refunds, disputes), reported by webhook. The charge is already
// refunded there, so no processor call is made; the ledger reconciliation
// still applies, including the compensating transfer when the reversal
// recovered less than the clinic's share. Re-delivery of the same processor
// refund id is a no-op.
func (s *Service) RecordExternalRefund(ctx context.Context, clinicSlug, chargeID, refundID string, amountCents, reversedCents int64, reason string) (*RefundResult, error) {
	p, err := s.repo.GetByChargeID(ctx, chargeID)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListRefunds(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, prior := range existing {
		if prior.ProcessorRefundID == refundID {
			return &RefundResult{Refund: prior, Payment: p}, nil
		}
	}

	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountCents > p.RefundableCents() {
		return nil, ErrAmountTooLarge
	}

	clinicShare := amountCents * p.ClinicShareCents / p.AmountCents
	shortfall := clinicShare - reversedCents

	result := &RefundResult{}
	if shortfall > 0 {
		if debt := s.recoverShortfall(ctx, clinicSlug, p, shortfall, reason); debt != nil {
			result.DebtRecorded = debt
		}
	}

	rf := &Refund{
		PaymentID:         p.ID,
		ProcessorRefundID: refundID,
		AmountCents:       amountCents,
		ReversedCents:     reversedCents,
		Reason:            reason,
	}
	if err := s.settleRefund(ctx, clinicSlug, p, rf, result); err != nil {
		return nil, err
	}
	return result, nil
}

// settleRefund writes the refund row, rolls the refunded total into the
// payment and order statuses, and publishes the refund event.
func (s *Service) settleRefund(ctx context.Context, clinicSlug string, p *Payment, rf *Refund, result *RefundResult) error {
	if err := s.repo.CreateRefund(ctx, rf); err != nil {
		return err
	}

	p.RefundedCents += rf.AmountCents
	orderStatus := order.StatusPartiallyRefunded
	if p.RefundedCents >= p.AmountCents {
		p.Status = StatusRefunded
		orderStatus = order.StatusRefunded
	} else {
		p.Status = StatusPartiallyRefunded
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return err
	}
	if err := s.orders.UpdateStatus(ctx, p.OrderID, orderStatus); err != nil {
		s.logger.Warn().Err(err).Str("order_id", p.OrderID.String()).Msg("order status not updated after refund")
	}

	result.Refund = rf
	result.Payment = p

	_ = s.publisher.Publish(ctx, events.TypeOrderRefunded, clinicSlug, map[string]interface{}{
		"order_id":     p.OrderID,
		"amount_cents": rf.AmountCents,
		"debt":         result.DebtRecorded != nil,
	})
	return nil
}

// recoverShortfall attempts the compensating transfer; on failure it records
// a pending debt and returns it. The refund itself never fails here.
func (s *Service) recoverShortfall(ctx context.Context, clinicSlug string, p *Payment, shortfall int64, reason string) *PendingDebt {
	acct, err := s.accounts.ProcessorAccount(ctx, clinicSlug)
	if err == nil {
		_, err = s.processor.Transfer(ctx, payments.TransferParams{
			DestinationAccount: acct,
			AmountCents:        shortfall,
			Description:        fmt.Sprintf("refund shortfall for charge %s", p.ChargeID),
		})
		if err == nil {
			return nil
		}
	}

	s.logger.Warn().Err(err).
		Str("clinic", clinicSlug).
		Int64("amount_cents", shortfall).
		Msg("compensating transfer failed, recording pending debt")

	debt := &PendingDebt{
		ClinicSlug:  clinicSlug,
		PaymentID:   p.ID,
		AmountCents: shortfall,
		Reason:      reason,
		Status:      DebtPending,
		Attempts:    1,
		LastError:   err.Error(),
	}
	if cerr := s.repo.CreatePendingDebt(ctx, debt); cerr != nil {
		s.logger.Error().Err(cerr).Str("clinic", clinicSlug).Msg("pending debt not recorded")
		return nil
	}
	return debt
}

// RetryPendingDebts re-attempts the compensating transfer for every pending
// debt. Run by the debt retry cron job.
func (s *Service) RetryPendingDebts(ctx context.Context) (settled, failed int, err error) {
	debts, _, err := s.repo.ListPendingDebts(ctx, DebtPending, 100, 0)
	if err != nil {
		return 0, 0, err
	}

	for _, d := range debts {
		acct, aerr := s.accounts.ProcessorAccount(ctx, d.ClinicSlug)
		var terr error
		if aerr != nil {
			terr = aerr
		} else {
			_, terr = s.processor.Transfer(ctx, payments.TransferParams{
				DestinationAccount: acct,
				AmountCents:        d.AmountCents,
				Description:        "pending debt settlement: " + d.Reason,
			})
		}

		d.Attempts++
		if terr != nil {
			d.LastError = terr.Error()
			failed++
		} else {
			now := time.Now().UTC()
			d.Status = DebtSettled
			d.SettledAt = &now
			d.LastError = ""
			settled++
		}
		if uerr := s.repo.UpdatePendingDebt(ctx, d); uerr != nil {
			s.logger.Error().Err(uerr).Str("debt_id", d.ID.String()).Msg("pending debt not updated")
		}
	}
	return settled, failed, nil
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*Payment, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

func (s *Service) GetPaymentByCharge(ctx context.Context, chargeID string) (*Payment, error) {
	return s.repo.GetByChargeID(ctx, chargeID)
}

func (s *Service) ListPayments(ctx context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	return s.repo.List(ctx, status, limit, offset)
}

func (s *Service) ListRefunds(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error) {
	return s.repo.ListRefunds(ctx, paymentID)
}

func (s *Service) ListPendingDebts(ctx context.Context, status string, limit, offset int) ([]*PendingDebt, int, error) {
	return s.repo.ListPendingDebts(ctx, status, limit, offset)
}
