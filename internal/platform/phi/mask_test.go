package phi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fusehealth/commerce-api/internal/platform/auth"
)

func patientPayload() map[string]interface{} {
	return map[string]interface{}{
		"id":         "pat-1",
		"first_name": "Jane",
		"last_name":  "Doe",
		"email":      "jane@example.com",
		"dob":        "1985-04-12",
		"status":     "active",
		"shipping_address": map[string]interface{}{
			"line1": "123 Main St",
			"city":  "Springfield",
		},
		"orders": []interface{}{
			map[string]interface{}{
				"id":    "ord-1",
				"total": 4999,
				"phone": "+1-555-0100",
			},
		},
	}
}

func runMasked(t *testing.T, impersonation bool, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients/pat-1", nil)
	if impersonation {
		ctx := context.WithValue(req.Context(), auth.ImpersonationKey, true)
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	mw := MaskMiddleware(zerolog.Nop())
	h := mw(func(c echo.Context) error {
		return c.JSON(http.StatusOK, payload)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return rec
}

func TestMaskMiddleware_ImpersonationRedacts(t *testing.T) {
	rec := runMasked(t, true, patientPayload())

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["email"] != RedactedPlaceholder {
		t.Errorf("email not redacted: %v", body["email"])
	}
	if body["dob"] != RedactedDate {
		t.Errorf("dob should use date placeholder: %v", body["dob"])
	}
	if body["status"] != "active" {
		t.Errorf("non-PHI field should survive: %v", body["status"])
	}
	if body["id"] != "pat-1" {
		t.Errorf("id should survive: %v", body["id"])
	}

	addr := body["shipping_address"].(map[string]interface{})
	if addr["line1"] != RedactedPlaceholder || addr["city"] != RedactedPlaceholder {
		t.Errorf("nested address not redacted: %v", addr)
	}

	orders := body["orders"].([]interface{})
	order := orders[0].(map[string]interface{})
	if order["phone"] != RedactedPlaceholder {
		t.Errorf("phone inside array not redacted: %v", order["phone"])
	}
	if order["total"] != float64(4999) {
		t.Errorf("order total should survive: %v", order["total"])
	}
}

func TestMaskMiddleware_NormalSessionUntouched(t *testing.T) {
	rec := runMasked(t, false, patientPayload())

	if !strings.Contains(rec.Body.String(), "jane@example.com") {
		t.Error("normal session should see raw values")
	}
}

func TestMaskMiddleware_NullStaysNull(t *testing.T) {
	rec := runMasked(t, true, map[string]interface{}{"email": nil, "id": "x"})

	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["email"] != nil {
		t.Errorf("null PHI value should stay null, got %v", body["email"])
	}
}

func TestMaskValue_DeepNesting(t *testing.T) {
	doc := map[string]interface{}{
		"data": map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{
					"patient": map[string]interface{}{
						"ssn": "123-45-6789",
					},
				},
			},
		},
	}

	masked := MaskValue(doc).(map[string]interface{})
	ssn := masked["data"].(map[string]interface{})["items"].([]interface{})[0].(map[string]interface{})["patient"].(map[string]interface{})["ssn"]
	if ssn != RedactedPlaceholder {
		t.Errorf("deeply nested ssn not redacted: %v", ssn)
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path     string
		resource string
		id       string
	}{
		{"/api/v1/patients/123", "patients", "123"},
		{"/api/v1/patients", "patients", ""},
		{"/api/v1/orders/9/refund", "orders", "9"},
		{"/health", "", ""},
	}
	for _, tt := range tests {
		r, id := resourceFromPath(tt.path)
		if r != tt.resource || id != tt.id {
			t.Errorf("resourceFromPath(%s) = (%s,%s), want (%s,%s)", tt.path, r, id, tt.resource, tt.id)
		}
	}
}
