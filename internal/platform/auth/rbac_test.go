package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allows(t *testing.T) {
	c := contextWithRoles(RoleDoctor)
	mw := RequireRole(RoleDoctor)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if err := handler(c); err != nil {
		t.Fatalf("expected doctor to pass, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles(RoleAdmin)
	mw := RequireRole(RoleDoctor)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if err := handler(c); err != nil {
		t.Fatalf("expected admin bypass, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	c := contextWithRoles(RolePatient)
	mw := RequireRole(RoleClinic)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_AnyOf(t *testing.T) {
	c := contextWithRoles(RoleAffiliate)
	mw := RequireRole(RoleClinic, RoleAffiliate)
	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	if err := handler(c); err != nil {
		t.Fatalf("expected affiliate to pass any-of check, got %v", err)
	}
}

func TestSameClinic(t *testing.T) {
	ctx := context.WithValue(context.Background(), UserRolesKey, []string{RoleDoctor})
	ctx = context.WithValue(ctx, ClinicIDKey, "acme")

	if !SameClinic(ctx, "acme") {
		t.Error("expected doctor to access own clinic")
	}
	if SameClinic(ctx, "rival") {
		t.Error("expected cross-clinic access to be denied")
	}

	adminCtx := context.WithValue(context.Background(), UserRolesKey, []string{RoleAdmin})
	if !SameClinic(adminCtx, "anything") {
		t.Error("expected admin to access any clinic")
	}
}
