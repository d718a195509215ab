package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProcessor talks to the payment gateway's REST API.
type HTTPProcessor struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProcessor creates a processor client for the given gateway.
func NewHTTPProcessor(baseURL, apiKey string) *HTTPProcessor {
	return &HTTPProcessor{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *HTTPProcessor) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	body := map[string]interface{}{
		"charge":           params.ChargeID,
		"reverse_transfer": params.ReverseTransfer,
	}
	if params.AmountCents > 0 {
		body["amount"] = params.AmountCents
	}
	if params.Reason != "" {
		body["reason"] = params.Reason
	}

	var refund Refund
	if err := p.post(ctx, "/v1/refunds", body, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

func (p *HTTPProcessor) Transfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	body := map[string]interface{}{
		"destination": params.DestinationAccount,
		"amount":      params.AmountCents,
	}
	if params.Description != "" {
		body["description"] = params.Description
	}

	var transfer Transfer
	if err := p.post(ctx, "/v1/transfers", body, &transfer); err != nil {
		return nil, err
	}
	return &transfer, nil
}

func (p *HTTPProcessor) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrChargeNotFound
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil {
			switch apiErr.Error.Code {
			case "charge_already_refunded":
				return ErrAlreadyRefunded
			case "transfer_rejected", "insufficient_funds":
				return fmt.Errorf("%w: %s", ErrTransferRejected, apiErr.Error.Message)
			}
			if apiErr.Error.Message != "" {
				return fmt.Errorf("processor error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			}
		}
		return fmt.Errorf("processor error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
