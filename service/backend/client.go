// Package backend talks to the orders service that records transactions
// submitted through the application before they land on chain.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/metrics"
)

// OrderPatch is the body of a status update sent back to the backend.
type OrderPatch struct {
	Status    activity.Status `json:"status"`
	UpdatedAt int64           `json:"updatedAt"` // epoch milliseconds
}

// Client is the HTTP client for the orders backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewClient creates a backend client. apiKey is sent as a bearer token when set.
func NewClient(baseURL, apiKey string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		metrics:    m,
		logger:     logger,
	}
}

// ListOrders returns the orders the backend knows for address.
func (c *Client) ListOrders(ctx context.Context, address string) (orders []activity.BackendOrder, err error) {
	start := time.Now()
	defer func() { c.metrics.RecordBackendRequest("list_orders", time.Since(start).Seconds(), err) }()

	u := fmt.Sprintf("%s/api/v1/orders?address=%s", c.baseURL, url.QueryEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	var body struct {
		Orders []activity.BackendOrder `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	c.logger.DebugContext(ctx, "listed backend orders", "address", address, "count", len(body.Orders))
	return body.Orders, nil
}

// PatchOrder pushes a status change for order id.
func (c *Client) PatchOrder(ctx context.Context, id string, patch OrderPatch) (err error) {
	start := time.Now()
	defer func() { c.metrics.RecordBackendRequest("patch_order", time.Since(start).Seconds(), err) }()

	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal patch: %w", err)
	}

	u := fmt.Sprintf("%s/api/v1/orders/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return parseErrorResponse(resp)
	}

	c.logger.DebugContext(ctx, "patched backend order", "order_id", id, "status", patch.Status)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, errResp.Error)
}
