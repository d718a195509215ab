package order

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/fusehealth/commerce-api/internal/platform/events"
)

type mockRepo struct {
	orders map[uuid.UUID]*Order
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockRepo) Create(_ context.Context, o *Order) error {
	o.ID = uuid.New()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Order, int, error) {
	var out []*Order
	for _, o := range m.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.PatientID != uuid.Nil && o.PatientID != f.PatientID {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func cart() *Order {
	return &Order{
		PatientID: uuid.New(),
		Items: []Item{
			{ProductID: uuid.New(), ProductName: "Semaglutide 1mg", Quantity: 2, UnitPriceCents: 29900},
			{ProductID: uuid.New(), ProductName: "B12 Injection", Quantity: 1, UnitPriceCents: 4900},
		},
	}
}

func TestCreateOrder_ComputesTotal(t *testing.T) {
	rec := &events.Recorder{}
	svc := NewService(newMockRepo(), rec)

	o := cart()
	o.TotalCents = 1 // client-supplied totals are ignored
	if err := svc.CreateOrder(context.Background(), "acme", o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if o.TotalCents != 2*29900+4900 {
		t.Fatalf("total = %d, want %d", o.TotalCents, 2*29900+4900)
	}
	if o.Status != StatusPending {
		t.Fatalf("status = %q, want pending", o.Status)
	}
	if got := rec.Types(); len(got) != 1 || got[0] != events.TypeOrderPlaced {
		t.Fatalf("published events = %v, want [order.placed]", got)
	}
}

func TestCreateOrder_Validation(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	cases := []*Order{
		{PatientID: uuid.Nil, Items: cart().Items},
		{PatientID: uuid.New()},
		{PatientID: uuid.New(), Items: []Item{{ProductID: uuid.New(), Quantity: 0}}},
		{PatientID: uuid.New(), Items: []Item{{ProductID: uuid.New(), Quantity: 1, UnitPriceCents: -5}}},
	}
	for i, o := range cases {
		if err := svc.CreateOrder(context.Background(), "acme", o); !errors.Is(err, ErrInvalidOrder) {
			t.Fatalf("case %d: error = %v, want ErrInvalidOrder", i, err)
		}
	}
}

func TestUpdateStatus_Lifecycle(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	o := cart()
	if err := svc.CreateOrder(context.Background(), "acme", o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	for _, status := range []string{StatusPaid, StatusProcessing, StatusShipped, StatusDelivered} {
		if err := svc.UpdateStatus(context.Background(), o.ID, status); err != nil {
			t.Fatalf("UpdateStatus(%s) error = %v", status, err)
		}
	}

	// Delivered orders cannot go back to processing.
	if err := svc.UpdateStatus(context.Background(), o.ID, StatusProcessing); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("delivered->processing error = %v, want ErrInvalidTransition", err)
	}

	// But they can be refunded.
	if err := svc.UpdateStatus(context.Background(), o.ID, StatusRefunded); err != nil {
		t.Fatalf("delivered->refunded error = %v", err)
	}
}

func TestUpdateStatus_PendingCannotShip(t *testing.T) {
	svc := NewService(newMockRepo(), nil)

	o := cart()
	if err := svc.CreateOrder(context.Background(), "acme", o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if err := svc.UpdateStatus(context.Background(), o.ID, StatusShipped); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("pending->shipped error = %v, want ErrInvalidTransition", err)
	}
}

func TestCancelOrder(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)

	o := cart()
	if err := svc.CreateOrder(context.Background(), "acme", o); err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if err := svc.CancelOrder(context.Background(), o.ID); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), o.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %q, want cancelled", got.Status)
	}
}
