package daraja

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"` // the API returns this as a string
}

// Token returns a cached OAuth bearer token, fetching a fresh one when the
// cache is empty or past its safety-margined expiry. Refreshes are serialized
// under the client mutex; a failed fetch leaves the cache untouched.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		c.logger.Debug("Using cached access token")
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.OAuthURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build OAuth request: %w", err)
	}
	req.SetBasicAuth(c.opts.ConsumerKey, c.opts.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("OAuth request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read OAuth response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("OAuth token fetch rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return "", &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode OAuth response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("OAuth response carried no access token")
	}

	lifetime, err := tr.ExpiresIn.Int64()
	if err != nil {
		return "", fmt.Errorf("failed to parse token lifetime %q: %w", tr.ExpiresIn, err)
	}

	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(lifetime)*time.Second - tokenExpiryMargin)
	c.logger.Info("Fetched new access token", zap.Int64("expires_in", lifetime))
	return c.token, nil
}
