// Package client talks to the daemon's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/wachat/internal/chat"
)

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 30 * time.Second

// Client is an HTTP client for the daemon API. It satisfies the
// persistence port used by the reconciliation layer.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// New creates a client for the daemon listening at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// Error is returned for responses with a status of 400 or above.
type Error struct {
	Status  int
	Err     string `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message != "" && e.Message != e.Err {
		return fmt.Sprintf("server error %d: %s: %s", e.Status, e.Err, e.Message)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Err)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Err == "" {
			apiErr.Err = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

// Health is the body of GET /api/health.
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

// Health checks that the daemon is serving.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Stats is the body of GET /api/stats.
type Stats struct {
	Messages      int `json:"messages"`
	Conversations int `json:"conversations"`
	Connections   int `json:"connections"`
}

// Stats reads store and hub counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListConversations returns conversation summaries, latest first.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var convs []chat.Conversation
	if err := c.do(ctx, http.MethodGet, "/api/conversations", nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// ListMessages returns the history of one conversation, oldest first.
func (c *Client) ListMessages(ctx context.Context, waID string) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.do(ctx, http.MethodGet, "/api/messages/"+url.PathEscape(waID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// CreateMessage persists an outgoing message.
func (c *Client) CreateMessage(ctx context.Context, in chat.NewMessage) (*chat.Message, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var m chat.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", body, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Search runs a substring search over message content. An empty waID
// searches every conversation; limit <= 0 uses the server default.
func (c *Client) Search(ctx context.Context, query, waID string, limit int) ([]chat.SearchResult, error) {
	q := url.Values{"q": {query}}
	if waID != "" {
		q.Set("wa_id", waID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var results []chat.SearchResult
	if err := c.do(ctx, http.MethodGet, "/api/search?"+q.Encode(), nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Webhook posts a raw webhook payload, or a JSON array of them.
func (c *Client) Webhook(ctx context.Context, raw []byte) (*chat.IngestSummary, error) {
	var sum chat.IngestSummary
	if err := c.do(ctx, http.MethodPost, "/api/webhook", raw, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
