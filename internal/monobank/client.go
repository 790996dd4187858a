// Package monobank talks to the Monobank personal API and turns statement
// lines into canonical transactions.
package monobank

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dvloznov/smart-finance/internal/domain"
)

// DefaultBaseURL is the public Monobank API endpoint.
const DefaultBaseURL = "https://api.monobank.ua"

// Client is a thin HTTP client for the personal API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ClientInfo returns the client profile with its accounts.
func (c *Client) ClientInfo(ctx context.Context, token string) (*ClientInfo, error) {
	var info ClientInfo
	if err := c.get(ctx, token, "/personal/client-info", &info); err != nil {
		return nil, fmt.Errorf("ClientInfo: %w", err)
	}
	return &info, nil
}

// Statement returns the statement lines of account between from and to.
func (c *Client) Statement(ctx context.Context, token, account string, from, to time.Time) ([]StatementItem, error) {
	path := fmt.Sprintf("/personal/statement/%s/%d/%d", account, from.Unix(), to.Unix())

	var items []StatementItem
	if err := c.get(ctx, token, path, &items); err != nil {
		return nil, fmt.Errorf("Statement: %w", err)
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("monobank token: %w", domain.ErrInputMissing)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %v: %w", path, err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %v: %w", err, domain.ErrUpstreamUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("invalid Monobank token: %w", domain.ErrUpstreamAuth)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("Monobank rate limit exceeded: %w", domain.ErrUpstreamRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("Monobank API error %d: %s: %w", resp.StatusCode, errorDescription(body), domain.ErrUpstreamUnavailable)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %v: %w", path, err, domain.ErrMalformedResponse)
	}
	return nil
}

// errorDescription pulls errorDescription out of an error body if there is one.
func errorDescription(body []byte) string {
	var payload struct {
		ErrorDescription string `json:"errorDescription"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.ErrorDescription != "" {
		return payload.ErrorDescription
	}
	return strings.TrimSpace(string(body))
}
