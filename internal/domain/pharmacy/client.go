package pharmacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SubmitRequest is the fulfillment payload sent to a partner. The shipping
// snapshot comes from the order, not the live patient record.
type SubmitRequest struct {
	OrderID         uuid.UUID    `json:"order_id"`
	PatientID       uuid.UUID    `json:"patient_id"`
	Items           []SubmitItem `json:"items"`
	ShippingAddress string       `json:"shipping_address"`
	ShippingCity    string       `json:"shipping_city"`
	ShippingState   string       `json:"shipping_state"`
	ShippingZip     string       `json:"shipping_zip"`
}

type SubmitItem struct {
	ProductID        uuid.UUID `json:"product_id"`
	PartnerProductID string    `json:"partner_product_id,omitempty"`
	Name             string    `json:"name"`
	Quantity         int       `json:"quantity"`
}

// Client talks to a fulfillment partner's API.
type Client interface {
	Submit(ctx context.Context, partner *Partner, req SubmitRequest) (externalID string, err error)
	GetStatus(ctx context.Context, partner *Partner, externalID string) (status string, err error)
}

type httpClient struct {
	http *http.Client
}

func NewHTTPClient(timeout time.Duration) Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{http: &http.Client{Timeout: timeout}}
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (c *httpClient) Submit(ctx context.Context, partner *Partner, req SubmitRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var out submitResponse
	if err := c.do(ctx, partner, http.MethodPost, "/orders", bytes.NewReader(body), &out); err != nil {
		return "", fmt.Errorf("submit to %s: %w", partner.Code, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("submit to %s: response missing order id", partner.Code)
	}
	return out.ID, nil
}

func (c *httpClient) GetStatus(ctx context.Context, partner *Partner, externalID string) (string, error) {
	var out submitResponse
	if err := c.do(ctx, partner, http.MethodGet, "/orders/"+externalID, nil, &out); err != nil {
		return "", fmt.Errorf("status from %s: %w", partner.Code, err)
	}
	return out.Status, nil
}

func (c *httpClient) do(ctx context.Context, partner *Partner, method, path string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, partner.APIBaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if partner.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+partner.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("partner returned %d: %s", resp.StatusCode, msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// NormalizeStatus maps partner status vocabulary onto the dispatch lifecycle.
// Unknown values fall through unchanged so a sync never invents a state.
func NormalizeStatus(partnerStatus string) string {
	switch partnerStatus {
	case "received", "pending", "in_progress", "processing", "filled":
		return StatusProcessing
	case "shipped", "in_transit":
		return StatusShipped
	case "delivered", "completed":
		return StatusDelivered
	case "error", "rejected", "cancelled":
		return StatusError
	default:
		return partnerStatus
	}
}
