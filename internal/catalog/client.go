// Package catalog is the REST client for the event catalog service, which
// stores human-facing event metadata (name, date, venue, artwork) that never
// touches the chain.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cryptoticketing/ticketd/internal/domain"
)

// Client is the REST client for the catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a catalog client.
//
// baseURL is the catalog API root, e.g. "http://localhost:4000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// ListEvents returns all catalog events.
func (c *Client) ListEvents(ctx context.Context) ([]domain.EventMeta, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return nil, fmt.Errorf("catalog: list events: %w", err)
	}

	// The catalog wraps the array: {"events": [...]}.
	var payload struct {
		Events []domain.EventMeta `json:"events"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("catalog: decode events: %w", err)
	}
	return payload.Events, nil
}

// GetEvent returns a single event by id.
func (c *Client) GetEvent(ctx context.Context, eventID uint64) (domain.EventMeta, error) {
	path := "/api/events/" + url.PathEscape(strconv.FormatUint(eventID, 10))

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.EventMeta{}, fmt.Errorf("catalog: get event %d: %w", eventID, err)
	}

	var event domain.EventMeta
	if err := json.Unmarshal(body, &event); err != nil {
		return domain.EventMeta{}, fmt.Errorf("catalog: decode event: %w", err)
	}
	return event, nil
}

// CreateEvent registers event metadata with the catalog.
func (c *Client) CreateEvent(ctx context.Context, meta domain.EventMeta) (domain.EventMeta, error) {
	payload, err := json.Marshal(meta)
	if err != nil {
		return domain.EventMeta{}, fmt.Errorf("catalog: encode event: %w", err)
	}

	// The catalog answers {"ok": true}, not the stored record.
	if _, err := c.do(ctx, http.MethodPost, "/api/events", payload); err != nil {
		return domain.EventMeta{}, fmt.Errorf("catalog: create event %d: %w", meta.EventID, err)
	}
	return meta, nil
}

// DeleteEvent removes event metadata from the catalog.
func (c *Client) DeleteEvent(ctx context.Context, eventID uint64) error {
	path := "/api/events/" + url.PathEscape(strconv.FormatUint(eventID, 10))

	if _, err := c.do(ctx, http.MethodDelete, path, nil); err != nil {
		return fmt.Errorf("catalog: delete event %d: %w", eventID, err)
	}
	return nil
}

// do sends a JSON request to the catalog API.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
