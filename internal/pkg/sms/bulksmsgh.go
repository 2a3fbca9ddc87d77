package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBulkSMSGHBaseURL is the Bulk SMS Ghana HTTP API endpoint.
	DefaultBulkSMSGHBaseURL = "https://clientlogin.bulksmsgh.com/smsapi"

	defaultTimeout  = 10 * time.Second
	maxResponseBody = 64 * 1024
)

// success markers returned in the response body
var bulkSMSGHMarkers = []string{"1701", "OK"}

// Credentials returns the provider API key and sender id.
//
// It is invoked on every call so rotated secrets are picked up without a
// restart.
type Credentials func() (apiKey, senderID string)

// BulkSMSGHConfig configures the Bulk SMS Ghana gateway.
type BulkSMSGHConfig struct {
	BaseURL     string
	Timeout     time.Duration
	Credentials Credentials
	// Client overrides the HTTP client; Timeout is ignored when set.
	Client *http.Client
}

// BulkSMSGH delivers messages through the Bulk SMS Ghana HTTP GET API.
type BulkSMSGH struct {
	baseURL     string
	credentials Credentials
	client      *http.Client
}

// NewBulkSMSGH constructs a BulkSMSGH gateway.
func NewBulkSMSGH(cfg BulkSMSGHConfig) *BulkSMSGH {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBulkSMSGHBaseURL
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = func() (string, string) { return "", "" }
	}

	return &BulkSMSGH{
		baseURL:     baseURL,
		credentials: creds,
		client:      client,
	}
}

// Configured reports whether both API key and sender id are set.
func (b *BulkSMSGH) Configured() bool {
	key, sender := b.credentials()
	return key != "" && sender != ""
}

// Send issues the GET request and inspects the response.
//
// A message counts as delivered when the body carries a known success marker
// or the HTTP status is 2xx.
func (b *BulkSMSGH) Send(ctx context.Context, msg Message) (*Result, error) {
	key, sender := b.credentials()
	if key == "" || sender == "" {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("key", key)
	q.Set("to", msg.To)
	q.Set("msg", msg.Text)
	q.Set("sender_id", sender)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("sms: build request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sms: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("sms: read response: %w", err)
	}
	body := string(raw)

	slog.InfoContext(ctx, "sms gateway response", "status", resp.StatusCode, "response", body)

	if !delivered(resp.StatusCode, body) {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Body: body}
	}

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// Close implements io.Closer.
func (b *BulkSMSGH) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func delivered(status int, body string) bool {
	for _, m := range bulkSMSGHMarkers {
		if strings.Contains(body, m) {
			return true
		}
	}

	return status >= 200 && status < 300
}
