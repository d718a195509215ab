package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/events"
	"github.com/fusehealth/commerce-api/internal/platform/payments"
)

type mockRepo struct {
	payments map[uuid.UUID]*Payment
	refunds  []*Refund
	debts    map[uuid.UUID]*PendingDebt
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		payments: make(map[uuid.UUID]*Payment),
		debts:    make(map[uuid.UUID]*PendingDebt),
	}
}

func (m *mockRepo) Create(_ context.Context, p *Payment) error {
	p.ID = uuid.New()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByOrderID(_ context.Context, orderID uuid.UUID) (*Payment, error) {
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) GetByChargeID(_ context.Context, chargeID string) (*Payment, error) {
	for _, p := range m.payments {
		if p.ChargeID == chargeID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, p *Payment) error {
	if _, ok := m.payments[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, status string, limit, offset int) ([]*Payment, int, error) {
	var out []*Payment
	for _, p := range m.payments {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) CreateRefund(_ context.Context, r *Refund) error {
	r.ID = uuid.New()
	cp := *r
	m.refunds = append(m.refunds, &cp)
	return nil
}

func (m *mockRepo) ListRefunds(_ context.Context, paymentID uuid.UUID) ([]*Refund, error) {
	var out []*Refund
	for _, r := range m.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) CreatePendingDebt(_ context.Context, d *PendingDebt) error {
	d.ID = uuid.New()
	cp := *d
	m.debts[d.ID] = &cp
	return nil
}

func (m *mockRepo) UpdatePendingDebt(_ context.Context, d *PendingDebt) error {
	if _, ok := m.debts[d.ID]; !ok {
		return errors.New("debt not found")
	}
	cp := *d
	m.debts[d.ID] = &cp
	return nil
}

func (m *mockRepo) ListPendingDebts(_ context.Context, status string, limit, offset int) ([]*PendingDebt, int, error) {
	var out []*PendingDebt
	for _, d := range m.debts {
		if status == "" || d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

type mockOrders struct {
	orders map[uuid.UUID]*order.Order
}

func newMockOrders() *mockOrders {
	return &mockOrders{orders: make(map[uuid.UUID]*order.Order)}
}

func (m *mockOrders) add(status string) uuid.UUID {
	id := uuid.New()
	m.orders[id] = &order.Order{ID: id, Status: status}
	return id
}

func (m *mockOrders) GetOrder(_ context.Context, id uuid.UUID) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrders) UpdateStatus(_ context.Context, id uuid.UUID, to string) error {
	o, ok := m.orders[id]
	if !ok {
		return order.ErrNotFound
	}
	o.Status = to
	return nil
}

type staticAccounts map[string]string

func (a staticAccounts) ProcessorAccount(_ context.Context, slug string) (string, error) {
	acct, ok := a[slug]
	if !ok {
		return "", errors.New("no connected account for " + slug)
	}
	return acct, nil
}

type fixture struct {
	repo      *mockRepo
	orders    *mockOrders
	processor *payments.FakeProcessor
	svc       *Service
	orderID   uuid.UUID
	payment   *Payment
}

// newFixture seeds a captured $100.00 payment with a 20% platform fee:
// clinic share $80.00.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newMockRepo()
	orders := newMockOrders()
	processor := payments.NewFakeProcessor()
	accounts := staticAccounts{"acme": "acct_clinic_acme"}
	svc := NewService(repo, orders, processor, accounts, &events.Recorder{}, zerolog.Nop())

	orderID := orders.add(order.StatusDelivered)
	processor.AddCharge("ch_100", 10000)

	p := &Payment{
		OrderID:          orderID,
		ChargeID:         "ch_100",
		AmountCents:      10000,
		PlatformFeeCents: 2000,
		ClinicShareCents: 8000,
		Status:           StatusCaptured,
	}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed payment: %v", err)
	}

	return &fixture{repo: repo, orders: orders, processor: processor, svc: svc, orderID: orderID, payment: p}
}

func TestRefundOrder_FullRefund(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 0, "requested_by_customer")
	if err != nil {
		t.Fatalf("RefundOrder() error = %v", err)
	}
	if res.Refund.AmountCents != 10000 {
		t.Fatalf("refund amount = %d, want 10000", res.Refund.AmountCents)
	}
	if res.Payment.Status != StatusRefunded {
		t.Fatalf("payment status = %q, want refunded", res.Payment.Status)
	}
	if res.DebtRecorded != nil {
		t.Fatalf("unexpected debt recorded: %+v", res.DebtRecorded)
	}

	o, _ := f.orders.GetOrder(context.Background(), f.orderID)
	if o.Status != order.StatusRefunded {
		t.Fatalf("order status = %q, want refunded", o.Status)
	}

	// Full reversal recovered everything; no compensating transfer needed.
	if len(f.processor.Transfers) != 0 {
		t.Fatalf("transfers = %v, want none", f.processor.Transfers)
	}
}

func TestRefundOrder_PartialRefund(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 2500, "damaged shipment")
	if err != nil {
		t.Fatalf("RefundOrder() error = %v", err)
	}
	if res.Payment.Status != StatusPartiallyRefunded {
		t.Fatalf("payment status = %q, want partially_refunded", res.Payment.Status)
	}
	if res.Payment.RefundedCents != 2500 {
		t.Fatalf("refunded = %d, want 2500", res.Payment.RefundedCents)
	}

	o, _ := f.orders.GetOrder(context.Background(), f.orderID)
	if o.Status != order.StatusPartiallyRefunded {
		t.Fatalf("order status = %q, want partially_refunded", o.Status)
	}

	// A second refund of the remainder completes the refund.
	res2, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 7500, "")
	if err != nil {
		t.Fatalf("second RefundOrder() error = %v", err)
	}
	if res2.Payment.Status != StatusRefunded {
		t.Fatalf("payment status after second refund = %q, want refunded", res2.Payment.Status)
	}
}

func TestRefundOrder_ShortfallTransfer(t *testing.T) {
	f := newFixture(t)

	// Reversal recovers $70.00 of the clinic's $80.00 share.
	f.processor.ReversalShortfallCents = 3000

	res, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 0, "")
	if err != nil {
		t.Fatalf("RefundOrder() error = %v", err)
	}
	if res.DebtRecorded != nil {
		t.Fatalf("debt recorded despite successful transfer: %+v", res.DebtRecorded)
	}
	if len(f.processor.Transfers) != 1 {
		t.Fatalf("transfers = %d, want 1", len(f.processor.Transfers))
	}
	tr := f.processor.Transfers[0]
	if tr.AmountCents != 1000 {
		t.Fatalf("compensating transfer = %d cents, want 1000", tr.AmountCents)
	}
	if tr.DestinationAccount != "acct_clinic_acme" {
		t.Fatalf("transfer account = %q", tr.DestinationAccount)
	}
}

func TestRefundOrder_TransferFailureRecordsDebt(t *testing.T) {
	f := newFixture(t)
	f.processor.ReversalShortfallCents = 3000
	f.processor.FailTransfers = true

	res, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 0, "chargeback")
	if err != nil {
		t.Fatalf("RefundOrder() error = %v, refund must succeed despite transfer failure", err)
	}

	if res.DebtRecorded == nil {
		t.Fatal("no pending debt recorded")
	}
	if res.DebtRecorded.AmountCents != 1000 {
		t.Fatalf("debt = %d cents, want 1000", res.DebtRecorded.AmountCents)
	}
	if res.DebtRecorded.ClinicSlug != "acme" {
		t.Fatalf("debt clinic = %q, want acme", res.DebtRecorded.ClinicSlug)
	}
	if res.Payment.Status != StatusRefunded {
		t.Fatalf("payment status = %q, refund must still complete", res.Payment.Status)
	}

	debts, _, _ := f.repo.ListPendingDebts(context.Background(), DebtPending, 10, 0)
	if len(debts) != 1 {
		t.Fatalf("pending debts = %d, want 1", len(debts))
	}
}

func TestRefundOrder_Rejections(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.RefundOrder(context.Background(), "acme", uuid.New(), 0, ""); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("unknown order error = %v, want order.ErrNotFound", err)
	}
	if _, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 20000, ""); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("oversized refund error = %v, want ErrAmountTooLarge", err)
	}
	if _, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, -5, ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("negative refund error = %v, want ErrInvalidAmount", err)
	}

	// A fully refunded payment rejects further refunds.
	if _, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 0, ""); err != nil {
		t.Fatalf("full refund error = %v", err)
	}
	if _, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 100, ""); !errors.Is(err, ErrNotRefundable) {
		t.Fatalf("refund after full refund error = %v, want ErrNotRefundable", err)
	}
}

func TestRefundOrder_ShareMathExact(t *testing.T) {
	f := newFixture(t)
	// Partial refund of $33.33: clinic share is 3333*8000/10000 = 2666 cents,
	// floored. Reversal recovers the full refund amount here, so no transfer.
	res, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 3333, "")
	if err != nil {
		t.Fatalf("RefundOrder() error = %v", err)
	}
	if res.Refund.AmountCents != 3333 {
		t.Fatalf("refund = %d, want 3333", res.Refund.AmountCents)
	}
	if len(f.processor.Transfers) != 0 {
		t.Fatalf("transfers = %v, want none", f.processor.Transfers)
	}
}

func TestRecordCapture(t *testing.T) {
	f := newFixture(t)
	orderID := f.orders.add(order.StatusPending)

	p, err := f.svc.RecordCapture(context.Background(), orderID, "ch_new", 5000, 2000)
	if err != nil {
		t.Fatalf("RecordCapture() error = %v", err)
	}
	if p.PlatformFeeCents != 1000 || p.ClinicShareCents != 4000 {
		t.Fatalf("fee split = %d/%d, want 1000/4000", p.PlatformFeeCents, p.ClinicShareCents)
	}

	o, _ := f.orders.GetOrder(context.Background(), orderID)
	if o.Status != order.StatusPaid {
		t.Fatalf("order status = %q, want paid", o.Status)
	}
}

func TestRetryPendingDebts(t *testing.T) {
	f := newFixture(t)
	f.processor.ReversalShortfallCents = 3000
	f.processor.FailTransfers = true

	if _, err := f.svc.RefundOrder(context.Background(), "acme", f.orderID, 0, ""); err != nil {
		t.Fatalf("RefundOrder() error = %v", err)
	}

	// First retry still fails.
	settled, failed, err := f.svc.RetryPendingDebts(context.Background())
	if err != nil || settled != 0 || failed != 1 {
		t.Fatalf("retry while failing = (%d, %d, %v), want (0, 1, nil)", settled, failed, err)
	}

	// Transfers recover; retry settles the debt.
	f.processor.FailTransfers = false
	settled, failed, err = f.svc.RetryPendingDebts(context.Background())
	if err != nil || settled != 1 || failed != 0 {
		t.Fatalf("retry after recovery = (%d, %d, %v), want (1, 0, nil)", settled, failed, err)
	}

	remaining, _, _ := f.repo.ListPendingDebts(context.Background(), DebtPending, 10, 0)
	if len(remaining) != 0 {
		t.Fatalf("pending debts after settle = %d, want 0", len(remaining))
	}

	for _, d := range f.repo.debts {
		if d.Status != DebtSettled || d.SettledAt == nil || d.Attempts < 2 {
			t.Fatalf("settled debt = %+v", d)
		}
	}
}

func TestRecordExternalRefund(t *testing.T) {
	f := newFixture(t)

	// Partial refund reported by the processor: $25.00 refunded, the
	// reversal pulled back only $15.00 of the clinic's $20.00 share.
	res, err := f.svc.RecordExternalRefund(context.Background(), "acme", "ch_100", "re_ext_1", 2500, 1500, "dispute")
	if err != nil {
		t.Fatalf("RecordExternalRefund() error = %v", err)
	}
	if res.Refund.ProcessorRefundID != "re_ext_1" {
		t.Fatalf("refund id = %q, want re_ext_1", res.Refund.ProcessorRefundID)
	}
	if res.Payment.Status != StatusPartiallyRefunded || res.Payment.RefundedCents != 2500 {
		t.Fatalf("payment = %q refunded=%d, want partially_refunded/2500", res.Payment.Status, res.Payment.RefundedCents)
	}

	// Clinic share of the refund is 2500*8000/10000 = 2000; the recovery
	// transfer covers the 500 the reversal missed.
	if len(f.processor.Transfers) != 1 || f.processor.Transfers[0].AmountCents != 500 {
		t.Fatalf("transfers = %+v, want one of 500", f.processor.Transfers)
	}
	if res.DebtRecorded != nil {
		t.Fatalf("unexpected debt: %+v", res.DebtRecorded)
	}

	// No processor refund call was made; the charge was refunded upstream.
	if len(f.processor.Refunds) != 0 {
		t.Fatalf("refund calls = %d, want 0", len(f.processor.Refunds))
	}

	// Re-delivery of the same processor refund id is a no-op.
	again, err := f.svc.RecordExternalRefund(context.Background(), "acme", "ch_100", "re_ext_1", 2500, 1500, "dispute")
	if err != nil {
		t.Fatalf("replayed RecordExternalRefund() error = %v", err)
	}
	if again.Payment.RefundedCents != 2500 {
		t.Fatalf("refunded after replay = %d, want 2500", again.Payment.RefundedCents)
	}
	if len(f.processor.Transfers) != 1 {
		t.Fatalf("transfers after replay = %d, want 1", len(f.processor.Transfers))
	}
}
