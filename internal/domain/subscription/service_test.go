package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/domain/order"
	"github.com/fusehealth/commerce-api/internal/platform/events"
)

type mockRepo struct {
	subs map[uuid.UUID]*Subscription
}

func newMockRepo() *mockRepo {
	return &mockRepo{subs: make(map[uuid.UUID]*Subscription)}
}

func (m *mockRepo) Create(_ context.Context, s *Subscription) error {
	s.ID = uuid.New()
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, s *Subscription) error {
	if _, ok := m.subs[s.ID]; !ok {
		return ErrNotFound
	}
	cp := *s
	m.subs[s.ID] = &cp
	return nil
}

func (m *mockRepo) List(_ context.Context, patientID uuid.UUID, status string, limit, offset int) ([]*Subscription, int, error) {
	var out []*Subscription
	for _, s := range m.subs {
		if patientID != uuid.Nil && s.PatientID != patientID {
			continue
		}
		if status != "" && s.Status != status {
			continue
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepo) ListDue(_ context.Context, asOf time.Time, limit int) ([]*Subscription, error) {
	var out []*Subscription
	for _, s := range m.subs {
		if s.Status == StatusActive && !s.NextRenewalAt.After(asOf) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockOrders struct {
	created []*order.Order
	fail    bool
}

func (m *mockOrders) CreateOrder(_ context.Context, _ string, o *order.Order) error {
	if m.fail {
		return errors.New("order store down")
	}
	o.ID = uuid.New()
	m.created = append(m.created, o)
	return nil
}

type staticCatalog map[uuid.UUID]string

func (c staticCatalog) ProductName(_ context.Context, id uuid.UUID) (string, error) {
	name, ok := c[id]
	if !ok {
		return "", errors.New("product not found")
	}
	return name, nil
}

func newTestService(repo Repository, orders OrderCreator, catalog ProductCatalog) *Service {
	return NewService(repo, orders, catalog, &events.Recorder{}, zerolog.Nop())
}

func TestCreateSubscription(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockOrders{}, staticCatalog{})

	sub := &Subscription{
		PatientID:    uuid.New(),
		ProductID:    uuid.New(),
		IntervalDays: 30,
		PriceCents:   29900,
	}
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if sub.Status != StatusActive {
		t.Fatalf("status = %q, want active", sub.Status)
	}
	if sub.NextRenewalAt.IsZero() {
		t.Fatal("next renewal not scheduled")
	}
}

func TestCreateSubscription_Validation(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockOrders{}, staticCatalog{})

	cases := []*Subscription{
		{ProductID: uuid.New(), IntervalDays: 30, PriceCents: 100},
		{PatientID: uuid.New(), IntervalDays: 30, PriceCents: 100},
		{PatientID: uuid.New(), ProductID: uuid.New(), IntervalDays: 3, PriceCents: 100},
		{PatientID: uuid.New(), ProductID: uuid.New(), IntervalDays: 30, PriceCents: 0},
	}
	for i, sub := range cases {
		if err := svc.CreateSubscription(context.Background(), sub); !errors.Is(err, ErrInvalid) {
			t.Fatalf("case %d: error = %v, want ErrInvalid", i, err)
		}
	}
}

func TestPauseResume(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockOrders{}, staticCatalog{})

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	now := base
	svc.now = func() time.Time { return now }

	sub := &Subscription{PatientID: uuid.New(), ProductID: uuid.New(), IntervalDays: 30, PriceCents: 100}
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	originalRenewal := sub.NextRenewalAt

	if err := svc.Pause(context.Background(), sub.ID); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := svc.Pause(context.Background(), sub.ID); !errors.Is(err, ErrNotActive) {
		t.Fatalf("double Pause() error = %v, want ErrNotActive", err)
	}

	// Resume ten days later: renewal pushed out by the pause duration.
	now = base.AddDate(0, 0, 10)
	if err := svc.Resume(context.Background(), sub.ID); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), sub.ID)
	want := originalRenewal.AddDate(0, 0, 10)
	if !got.NextRenewalAt.Equal(want) {
		t.Fatalf("renewal after resume = %v, want %v", got.NextRenewalAt, want)
	}
	if got.PausedAt != nil {
		t.Fatal("paused_at not cleared on resume")
	}
}

func TestCancel_Terminal(t *testing.T) {
	svc := newTestService(newMockRepo(), &mockOrders{}, staticCatalog{})

	sub := &Subscription{PatientID: uuid.New(), ProductID: uuid.New(), IntervalDays: 30, PriceCents: 100}
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if err := svc.Cancel(context.Background(), sub.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if err := svc.Pause(context.Background(), sub.ID); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Pause() after cancel error = %v, want ErrTerminated", err)
	}
	if err := svc.Resume(context.Background(), sub.ID); !errors.Is(err, ErrTerminated) {
		t.Fatalf("Resume() after cancel error = %v, want ErrTerminated", err)
	}
	if err := svc.Cancel(context.Background(), sub.ID); !errors.Is(err, ErrTerminated) {
		t.Fatalf("double Cancel() error = %v, want ErrTerminated", err)
	}
}

func TestRenewDue(t *testing.T) {
	repo := newMockRepo()
	orders := &mockOrders{}
	productID := uuid.New()
	catalog := staticCatalog{productID: "Semaglutide 1mg"}
	svc := newTestService(repo, orders, catalog)

	base := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	due := &Subscription{
		PatientID:     uuid.New(),
		ProductID:     productID,
		IntervalDays:  30,
		PriceCents:    29900,
		NextRenewalAt: base.AddDate(0, 0, -1),
	}
	notDue := &Subscription{
		PatientID:     uuid.New(),
		ProductID:     productID,
		IntervalDays:  30,
		PriceCents:    29900,
		NextRenewalAt: base.AddDate(0, 0, 5),
	}
	for _, s := range []*Subscription{due, notDue} {
		if err := svc.CreateSubscription(context.Background(), s); err != nil {
			t.Fatalf("CreateSubscription() error = %v", err)
		}
	}

	renewed, err := svc.RenewDue(context.Background(), "acme")
	if err != nil {
		t.Fatalf("RenewDue() error = %v", err)
	}
	if renewed != 1 {
		t.Fatalf("renewed = %d, want 1", renewed)
	}
	if len(orders.created) != 1 {
		t.Fatalf("orders created = %d, want 1", len(orders.created))
	}

	o := orders.created[0]
	if o.SubscriptionID == nil || *o.SubscriptionID != due.ID {
		t.Fatal("renewal order not linked to subscription")
	}
	if len(o.Items) != 1 || o.Items[0].UnitPriceCents != 29900 || o.Items[0].ProductName != "Semaglutide 1mg" {
		t.Fatalf("renewal items = %+v", o.Items)
	}

	got, _ := repo.GetByID(context.Background(), due.ID)
	want := due.NextRenewalAt.AddDate(0, 0, 30)
	if !got.NextRenewalAt.Equal(want) {
		t.Fatalf("next renewal = %v, want %v", got.NextRenewalAt, want)
	}

	// A second sweep finds nothing due.
	renewed, err = svc.RenewDue(context.Background(), "acme")
	if err != nil || renewed != 0 {
		t.Fatalf("second RenewDue() = (%d, %v), want (0, nil)", renewed, err)
	}
}

func TestRenewDue_OrderFailureDoesNotAdvance(t *testing.T) {
	repo := newMockRepo()
	orders := &mockOrders{fail: true}
	productID := uuid.New()
	svc := newTestService(repo, orders, staticCatalog{productID: "X"})

	base := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	sub := &Subscription{
		PatientID:     uuid.New(),
		ProductID:     productID,
		IntervalDays:  30,
		PriceCents:    100,
		NextRenewalAt: base.AddDate(0, 0, -1),
	}
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}

	renewed, err := svc.RenewDue(context.Background(), "acme")
	if err != nil || renewed != 0 {
		t.Fatalf("RenewDue() = (%d, %v), want (0, nil)", renewed, err)
	}

	got, _ := repo.GetByID(context.Background(), sub.ID)
	if !got.NextRenewalAt.Equal(sub.NextRenewalAt) {
		t.Fatal("renewal date advanced despite order failure")
	}
}

func TestMarkPastDue(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(repo, &mockOrders{}, staticCatalog{})

	sub := &Subscription{PatientID: uuid.New(), ProductID: uuid.New(), IntervalDays: 30, PriceCents: 100}
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("CreateSubscription() error = %v", err)
	}
	if err := svc.MarkPastDue(context.Background(), sub.ID); err != nil {
		t.Fatalf("MarkPastDue() error = %v", err)
	}
	got, _ := repo.GetByID(context.Background(), sub.ID)
	if got.Status != StatusPastDue {
		t.Fatalf("status = %q, want past_due", got.Status)
	}

	// A successful renewal payment brings it back.
	if err := svc.MarkRecovered(context.Background(), sub.ID); err != nil {
		t.Fatalf("MarkRecovered() error = %v", err)
	}
	got, _ = repo.GetByID(context.Background(), sub.ID)
	if got.Status != StatusActive {
		t.Fatalf("status after recovery = %q, want active", got.Status)
	}

	// Recovery of an already-active subscription is a no-op.
	if err := svc.MarkRecovered(context.Background(), sub.ID); err != nil {
		t.Fatalf("repeat MarkRecovered() error = %v", err)
	}
}
