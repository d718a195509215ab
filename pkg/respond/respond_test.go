package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestOK_Envelope(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := OK(c, map[string]string{"id": "abc"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !env.Success {
		t.Error("expected success=true")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHTTPErrorHandler_GenericInProduction(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HTTPErrorHandler(zerolog.Nop(), false)
	h(errors.New("pq: duplicate key value violates patients_email_key"), c)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "patients_email_key") {
		t.Error("production error response leaked internals")
	}
	if !strings.Contains(rec.Body.String(), "internal server error") {
		t.Errorf("expected generic message, got %s", rec.Body.String())
	}
}

func TestHTTPErrorHandler_VerboseInDevelopment(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HTTPErrorHandler(zerolog.Nop(), true)
	h(errors.New("something specific broke"), c)

	if !strings.Contains(rec.Body.String(), "something specific broke") {
		t.Errorf("expected verbose message in dev, got %s", rec.Body.String())
	}
}

func TestHTTPErrorHandler_PreservesHTTPError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HTTPErrorHandler(zerolog.Nop(), false)
	h(echo.NewHTTPError(http.StatusNotFound, "order not found"), c)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	var env Envelope
	json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Success {
		t.Error("expected success=false")
	}
	if env.Message != "order not found" {
		t.Errorf("unexpected message: %s", env.Message)
	}
}
