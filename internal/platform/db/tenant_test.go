package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newClinicContext(t *testing.T, setup func(c echo.Context, req *http.Request)) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c, req)
	}
	return c
}

func TestExtractClinicSlug_JWTClaimWins(t *testing.T) {
	c := newClinicContext(t, func(c echo.Context, req *http.Request) {
		c.Set("jwt_clinic_slug", "acme")
		req.Header.Set("X-Clinic-ID", "other")
	})

	if slug := extractClinicSlug(c, "default"); slug != "acme" {
		t.Errorf("expected jwt claim to win, got %s", slug)
	}
}

func TestExtractClinicSlug_HeaderFallback(t *testing.T) {
	c := newClinicContext(t, func(c echo.Context, req *http.Request) {
		req.Header.Set("X-Clinic-ID", "wellness_co")
	})

	if slug := extractClinicSlug(c, "default"); slug != "wellness_co" {
		t.Errorf("expected header fallback, got %s", slug)
	}
}

func TestExtractClinicSlug_QueryParam(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?clinic_id=brandx", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	if slug := extractClinicSlug(c, "default"); slug != "brandx" {
		t.Errorf("expected query param, got %s", slug)
	}
}

func TestExtractClinicSlug_Default(t *testing.T) {
	c := newClinicContext(t, nil)
	if slug := extractClinicSlug(c, "default"); slug != "default" {
		t.Errorf("expected default clinic, got %s", slug)
	}
}

func TestClinicSlugPattern(t *testing.T) {
	valid := []string{"acme", "wellness_co", "Brand123"}
	invalid := []string{"", "acme-health", "a b", "x;DROP TABLE", "../etc"}

	for _, s := range valid {
		if !clinicSlugPattern.MatchString(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}
	for _, s := range invalid {
		if clinicSlugPattern.MatchString(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestClinicFromContext_Empty(t *testing.T) {
	if slug := ClinicFromContext(context.Background()); slug != "" {
		t.Errorf("expected empty slug, got %s", slug)
	}
}

func TestCreateClinicSchema_RejectsInvalidSlug(t *testing.T) {
	err := CreateClinicSchema(context.Background(), nil, "bad-slug!", "")
	if err == nil {
		t.Fatal("expected error for invalid slug")
	}
}
