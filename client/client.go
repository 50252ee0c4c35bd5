package client

import (
	"bufio"
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
)

// Activities is the merged timeline of an address as served by the API.
type Activities struct {
	Address    string              `json:"address"`
	Count      int                 `json:"count"`
	Activities []activity.Activity `json:"activities"`
}

// PassResult is the outcome of an on-demand reconciliation pass.
type PassResult struct {
	PassID      string                  `json:"pass_id"`
	Address     string                  `json:"address"`
	Listed      int                     `json:"listed"`
	Fetched     int                     `json:"fetched"`
	Orders      int                     `json:"orders"`
	Total       int                     `json:"total"`
	Changes     []activity.StatusChange `json:"changes"`
	PatchErrors int                     `json:"patch_errors"`
	DurationMS  int64                   `json:"duration_ms"`
}

// StatusEvent is a status change delivered over the streaming endpoint.
type StatusEvent struct {
	EventID     string          `json:"event_id"`
	Address     string          `json:"address"`
	Network     string          `json:"network"`
	ActivityID  string          `json:"activity_id"`
	Signature   string          `json:"signature"`
	Status      activity.Status `json:"status"`
	UpdatedAt   int64           `json:"updated_at"`
	PublishedAt time.Time       `json:"published_at"`
}

// Client is the HTTP client for the txfeed API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new API client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ListActivities returns the merged timeline of address, newest first.
func (c *Client) ListActivities(ctx context.Context, address string) (*Activities, error) {
	var out Activities
	u := fmt.Sprintf("%s/api/v1/activities/%s", c.baseURL, url.PathEscape(address))
	if err := c.do(ctx, http.MethodGet, u, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "activities listed", "address", address, "count", out.Count)
	return &out, nil
}

// Reconcile runs a reconciliation pass for address now.
func (c *Client) Reconcile(ctx context.Context, address string) (*PassResult, error) {
	var out PassResult
	u := fmt.Sprintf("%s/api/v1/activities/%s/reconcile", c.baseURL, url.PathEscape(address))
	if err := c.do(ctx, http.MethodPost, u, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "reconciliation pass ran", "address", address, "pass_id", out.PassID)
	return &out, nil
}

// CreateSchedule starts timer-driven passes for address. A zero interval
// uses the server's default.
func (c *Client) CreateSchedule(ctx context.Context, address string, interval time.Duration) error {
	reqBody := map[string]string{"address": address}
	if interval > 0 {
		reqBody["poll_interval"] = interval.String()
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v1/schedules", body, http.StatusCreated, nil); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "schedule created", "address", address, "poll_interval", interval)
	return nil
}

// DeleteSchedule stops timer-driven passes for address.
func (c *Client) DeleteSchedule(ctx context.Context, address string) error {
	u := fmt.Sprintf("%s/api/v1/schedules/%s", c.baseURL, url.PathEscape(address))
	if err := c.do(ctx, http.MethodDelete, u, nil, http.StatusNoContent, nil); err != nil {
		return err
	}
	c.logger.DebugContext(ctx, "schedule deleted", "address", address)
	return nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/health", nil, http.StatusOK, nil)
}

// StreamStatus calls handle for each status event on address ("" for all)
// until ctx is done or the server closes the stream.
func (c *Client) StreamStatus(ctx context.Context, address string, handle func(*StatusEvent)) error {
	u := c.baseURL + "/api/v1/stream/status"
	if address != "" {
		u += "/" + url.PathEscape(address)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client's request timeout.
	streamClient := *c.httpClient
	streamClient.Timeout = 0

	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	var eventType string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			eventType = ""
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data := strings.TrimPrefix(line, "data: ")
			switch eventType {
			case "status":
				var e StatusEvent
				if err := json.Unmarshal([]byte(data), &e); err != nil {
					c.logger.WarnContext(ctx, "failed to decode status event", "error", err)
					continue
				}
				handle(&e)
			case "error":
				return fmt.Errorf("stream error: %s", data)
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, wantStatus int, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
