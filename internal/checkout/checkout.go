// Package checkout integrates the Polar payment provider: creating checkout
// sessions for the premium tier and verifying/decoding webhook events.
package checkout

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

type Client struct {
	httpClient    *http.Client
	apiURL        string
	apiKey        string
	productID     string
	successURL    string
	webhookSecret string
}

type Config struct {
	APIURL        string
	APIKey        string
	ProductID     string
	SuccessURL    string
	WebhookSecret string
	HTTPClient    *http.Client
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		httpClient:    httpClient,
		apiURL:        cfg.APIURL,
		apiKey:        cfg.APIKey,
		productID:     cfg.ProductID,
		successURL:    cfg.SuccessURL,
		webhookSecret: cfg.WebhookSecret,
	}
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateSession creates a hosted checkout session for the user and returns
// its redirect URL. The user ID travels in metadata so the webhook can map
// the payment back.
func (c *Client) CreateSession(ctx context.Context, userID, email string) (CheckoutSession, error) {
	payload := map[string]any{
		"product_id":     c.productID,
		"success_url":    c.successURL,
		"customer_email": email,
		"metadata":       map[string]string{"user_id": userID},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return CheckoutSession{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CheckoutSession{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return CheckoutSession{}, fmt.Errorf("checkout create: unexpected status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, fmt.Errorf("checkout create decode: %w", err)
	}
	return session, nil
}

// WebhookEvent is the decoded payload of a provider webhook, keyed by Type.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID       string            `json:"id"`
		Status   string            `json:"status"`
		PlanID   string            `json:"product_id"`
		EndsAt   *time.Time        `json:"ends_at"`
		Metadata map[string]string `json:"metadata"`
	} `json:"data"`
}

// VerifyAndDecode checks the HMAC-SHA256 signature header against the raw
// body and decodes the event.
func (c *Client) VerifyAndDecode(body []byte, signature string) (WebhookEvent, error) {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return WebhookEvent{}, ErrBadSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookEvent{}, fmt.Errorf("webhook decode: %w", err)
	}
	return event, nil
}

// Sign computes the signature for a payload. Exported for tests and local
// webhook replay tooling.
func (c *Client) Sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
