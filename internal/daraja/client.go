// Package daraja is a minimal client for the Safaricom Daraja API: OAuth
// token acquisition with in-process caching, and the Lipa na M-Pesa Online
// (STK push) payment initiation call.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultOAuthURL   = "https://api.safaricom.co.ke/oauth/v1/generate?grant_type=client_credentials"
	defaultSTKPushURL = "https://api.safaricom.co.ke/mpesa/stkpush/v1/processrequest"

	requestTimeout = 15 * time.Second

	// Tokens are treated as expired five minutes before the lifetime the
	// OAuth endpoint reports, so an in-flight payment never rides a token
	// that lapses mid-call.
	tokenExpiryMargin = 300 * time.Second
)

// Gateway is the outbound surface the payment service depends on.
type Gateway interface {
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (*STKPushResponse, error)
}

type Options struct {
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	TillNumber      string
	CallbackURL     string
	OAuthURL        string // defaults to the Safaricom production endpoint
	STKPushURL      string // defaults to the Safaricom production endpoint
	AccountRef      string
	TransactionDesc string
}

type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.OAuthURL == "" {
		opts.OAuthURL = defaultOAuthURL
	}
	if opts.STKPushURL == "" {
		opts.STKPushURL = defaultSTKPushURL
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// APIError is a non-2xx reply from the Daraja API. The raw body is kept so
// callers can surface the upstream detail verbatim.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daraja API returned status %d: %s", e.StatusCode, e.Body)
}

// Details returns the upstream error body as structured JSON when possible,
// otherwise as a plain string.
func (e *APIError) Details() any {
	if json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	return string(e.Body)
}

// InitiateSTKPush sends a payment prompt to the given phone. The caller is
// responsible for validating phone and amount; this method assumes both are
// well-formed and goes straight to the network.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount int64) (*STKPushResponse, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.opts.ShortCode + c.opts.Passkey + timestamp),
	)

	payload := STKPushRequest{
		BusinessShortCode: c.opts.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerBuyGoodsOnline",
		Amount:            amount,
		PartyA:            phoneNumber,
		PartyB:            c.opts.TillNumber,
		PhoneNumber:       phoneNumber,
		CallBackURL:       c.opts.CallbackURL,
		AccountReference:  c.opts.AccountRef,
		TransactionDesc:   c.opts.TransactionDesc,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal STK push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.STKPushURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build STK push request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("Initiating STK push",
		zap.String("phone_number", phoneNumber),
		zap.Int64("amount", amount),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("STK push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read STK push response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("STK push rejected by gateway",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: respBody}
	}

	var out STKPushResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode STK push response: %w", err)
	}

	c.logger.Info("STK push accepted",
		zap.String("checkout_request_id", out.CheckoutRequestID),
		zap.String("response_code", out.ResponseCode),
	)
	return &out, nil
}
