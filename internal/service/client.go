package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/uimap/uimap-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client implements schemas.LocatorStore over the HTTP API, letting a crawl
// run against a remote uimap serve instance instead of Postgres directly.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the API at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type idResponse struct {
	ID int64 `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// RegisterScreen posts the screen and returns the id the service assigned.
func (c *Client) RegisterScreen(ctx context.Context, screen schemas.Screen) (int64, error) {
	return c.postForID(ctx, "/screens", screen)
}

// AddElement posts one locator record.
func (c *Client) AddElement(ctx context.Context, el schemas.Element) (int64, error) {
	return c.postForID(ctx, "/add-locator", el)
}

func (c *Client) postForID(ctx context.Context, path string, payload any) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read response of %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return 0, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return 0, fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}

	var out idResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return 0, fmt.Errorf("decode response of %s: %w", path, err)
	}
	return out.ID, nil
}

// Health pings the service.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET /health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /health: status %d", resp.StatusCode)
	}
	return nil
}
