package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mpesapay/internal/daraja"
	"mpesapay/internal/domain"
)

// Client talks to a running payment service over HTTP, playing the role the
// browser frontend plays in production.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      int64  `json:"amount"`
}

type serviceError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details"`
}

// InitiateSTKPush asks the service to start a payment.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (*daraja.STKPushResponse, error) {
	body, err := json.Marshal(initiateRequest{PhoneNumber: phoneNumber, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal initiation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/stkpush", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build initiation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read initiation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var svcErr serviceError
		if json.Unmarshal(respBody, &svcErr) == nil && svcErr.Error != "" {
			if len(svcErr.Details) > 0 {
				return nil, fmt.Errorf("payment initiation rejected: %s (%s)", svcErr.Error, svcErr.Details)
			}
			return nil, fmt.Errorf("payment initiation rejected: %s", svcErr.Error)
		}
		return nil, fmt.Errorf("payment initiation returned status %d", resp.StatusCode)
	}

	var out daraja.STKPushResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode initiation response: %w", err)
	}
	return &out, nil
}

// PaymentStatus fetches the latest status record for a phone number.
func (c *Client) PaymentStatus(ctx context.Context, phoneNumber string) (*domain.StatusRecord, error) {
	statusURL := c.baseURL + "/payment-status?phone=" + url.QueryEscape(phoneNumber)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status query returned status %d", resp.StatusCode)
	}

	var record domain.StatusRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}
	return &record, nil
}
