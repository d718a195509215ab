package tier

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type mockRepo struct {
	tiers    map[uuid.UUID]*Tier
	assigned map[uuid.UUID]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tiers:    make(map[uuid.UUID]*Tier),
		assigned: make(map[uuid.UUID]int),
	}
}

func (m *mockRepo) Create(_ context.Context, t *Tier) error {
	t.ID = uuid.New()
	m.tiers[t.ID] = t
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Tier, error) {
	t, ok := m.tiers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *mockRepo) GetByName(_ context.Context, name string) (*Tier, error) {
	for _, t := range m.tiers {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockRepo) Update(_ context.Context, t *Tier) error {
	if _, ok := m.tiers[t.ID]; !ok {
		return ErrNotFound
	}
	m.tiers[t.ID] = t
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.tiers, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Tier, int, error) {
	var all []*Tier
	for _, t := range m.tiers {
		all = append(all, t)
	}
	return all, len(all), nil
}

func (m *mockRepo) AssignedClinicCount(_ context.Context, id uuid.UUID) (int, error) {
	return m.assigned[id], nil
}

func TestCreateTier(t *testing.T) {
	svc := NewService(newMockRepo())

	tier := &Tier{Name: "Growth", PriceCents: 49900, AnalyticsAccess: true, MaxProducts: 50}
	if err := svc.CreateTier(context.Background(), tier); err != nil {
		t.Fatalf("CreateTier() error = %v", err)
	}
	if tier.ID == uuid.Nil {
		t.Fatal("tier id not assigned")
	}
	if !tier.Active {
		t.Fatal("new tier not active")
	}
}

func TestCreateTier_Validation(t *testing.T) {
	svc := NewService(newMockRepo())

	cases := []*Tier{
		{Name: "", PriceCents: 100},
		{Name: "Bad", PriceCents: -1},
		{Name: "Bad", PriceCents: 100, MaxProducts: -5},
	}
	for _, tier := range cases {
		if err := svc.CreateTier(context.Background(), tier); !errors.Is(err, ErrInvalidTier) {
			t.Fatalf("CreateTier(%+v) error = %v, want ErrInvalidTier", tier, err)
		}
	}
}

func TestCreateTier_DuplicateName(t *testing.T) {
	svc := NewService(newMockRepo())

	if err := svc.CreateTier(context.Background(), &Tier{Name: "Starter"}); err != nil {
		t.Fatalf("first CreateTier() error = %v", err)
	}
	if err := svc.CreateTier(context.Background(), &Tier{Name: "Starter"}); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("duplicate CreateTier() error = %v, want ErrNameTaken", err)
	}
}

func TestDeleteTier_Assigned(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	tier := &Tier{Name: "Enterprise"}
	if err := svc.CreateTier(context.Background(), tier); err != nil {
		t.Fatalf("CreateTier() error = %v", err)
	}
	repo.assigned[tier.ID] = 2

	if err := svc.DeleteTier(context.Background(), tier.ID); !errors.Is(err, ErrTierAssigned) {
		t.Fatalf("DeleteTier() error = %v, want ErrTierAssigned", err)
	}

	repo.assigned[tier.ID] = 0
	if err := svc.DeleteTier(context.Background(), tier.ID); err != nil {
		t.Fatalf("DeleteTier() after unassign error = %v", err)
	}
	if _, err := svc.GetTier(context.Background(), tier.ID); !errors.Is(err, ErrNotFound) {
		t.Fatal("tier still present after delete")
	}
}
