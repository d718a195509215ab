package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
)

type staticPatients map[string]uuid.UUID

func (p staticPatients) PatientIDByUser(_ context.Context, userID string) (uuid.UUID, error) {
	id, ok := p[userID]
	if !ok {
		return uuid.Nil, errors.New("no patient record for " + userID)
	}
	return id, nil
}

// authAs injects a session the way the JWT middleware does.
func authAs(userID string, roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, auth.UserIDKey, userID)
			ctx = context.WithValue(ctx, auth.UserRolesKey, roles)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func newHandlerServer(repo Repository, patients PatientResolver, userID string, roles ...string) *echo.Echo {
	e := echo.New()
	h := NewHandler(newTestService(repo, &mockOrders{}, staticCatalog{}), patients)
	h.RegisterRoutes(e.Group("/api/v1", authAs(userID, roles...)))
	return e
}

func seedSubscription(t *testing.T, repo Repository, patientID uuid.UUID) uuid.UUID {
	t.Helper()
	sub := &Subscription{
		PatientID:    patientID,
		ProductID:    uuid.New(),
		IntervalDays: 30,
		PriceCents:   29900,
	}
	svc := newTestService(repo, &mockOrders{}, staticCatalog{})
	if err := svc.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub.ID
}

func TestSubscriptionLifecycle_PatientConfinedToOwnRows(t *testing.T) {
	repo := newMockRepo()
	mine, theirs := uuid.New(), uuid.New()
	ownID := seedSubscription(t, repo, mine)
	otherID := seedSubscription(t, repo, theirs)

	e := newHandlerServer(repo, staticPatients{"u1": mine}, "u1", auth.RolePatient)

	// Pausing another patient's subscription reads as not found.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/"+otherID.String()+"/pause", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cross-patient pause status = %d, want 404", rec.Code)
	}
	if got, _ := repo.GetByID(context.Background(), otherID); got.Status != StatusActive {
		t.Fatalf("cross-patient pause changed status to %q", got.Status)
	}

	// The owner can pause their own.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/"+ownID.String()+"/pause", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("own pause status = %d, want 200", rec.Code)
	}
	if got, _ := repo.GetByID(context.Background(), ownID); got.Status != StatusPaused {
		t.Fatalf("own pause left status %q, want paused", got.Status)
	}
}

func TestListSubscriptions_PatientSeesOnlyOwnRows(t *testing.T) {
	repo := newMockRepo()
	mine, theirs := uuid.New(), uuid.New()
	seedSubscription(t, repo, mine)
	seedSubscription(t, repo, theirs)

	e := newHandlerServer(repo, staticPatients{"u1": mine}, "u1", auth.RolePatient)

	// The patient_id filter cannot widen a patient session's view.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions?patient_id="+theirs.String(), nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Data struct {
			Items []Subscription `json:"items"`
			Total int            `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Total != 1 || body.Data.Items[0].PatientID != mine {
		t.Fatalf("patient session leaked another patient's subscriptions: %+v", body.Data)
	}
}

func TestSubscriptionRoutes_AffiliateRoleForbidden(t *testing.T) {
	repo := newMockRepo()
	id := seedSubscription(t, repo, uuid.New())

	e := newHandlerServer(repo, staticPatients{}, "aff-1", auth.RoleAffiliate)

	for _, path := range []string{
		"/api/v1/subscriptions",
		"/api/v1/subscriptions/" + id.String(),
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("GET %s status = %d, want 403", path, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions/"+id.String()+"/cancel", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("affiliate cancel status = %d, want 403", rec.Code)
	}
}
