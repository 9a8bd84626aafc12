// Package pricing is the HTTP client for the remote pricing and order
// backend. The state store never talks to the network itself; promo
// application and order submission are the only network-bound operations.
package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"scent-cart/internal/domain"
)

// ErrBackendUnavailable wraps transport-level failures so callers can show
// a transient error message.
var ErrBackendUnavailable = errors.New("pricing backend unavailable")

// Client calls the pricing/catalog backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a backend client for the given base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ApplyPromo submits the selected cart lines with a promo code and returns
// the discounted total and percentage.
func (c *Client) ApplyPromo(ctx context.Context, req domain.PromoRequest) (domain.PromoResult, error) {
	var result domain.PromoResult
	if err := c.post(ctx, "/api/promocode/apply", "", req, &result); err != nil {
		return domain.PromoResult{}, err
	}
	return result, nil
}

// SubmitOrder submits a complete order payload. token, when present, is
// forwarded as a bearer credential.
func (c *Client) SubmitOrder(ctx context.Context, payload domain.OrderPayload, token string) (domain.OrderResult, error) {
	var result domain.OrderResult
	if err := c.post(ctx, "/api/orders", token, payload, &result); err != nil {
		return domain.OrderResult{}, err
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, path, token string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Backend request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Backend request rejected",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
