package form

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hs-classifier/api/internal/hscode"
)

// ClassifyRequest is the body posted to /classify.
type ClassifyRequest struct {
	Description string `json:"description"`
}

// APIResponse covers both the success and the error shapes of /classify.
// 400 validation replies carry only Error.
type APIResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Error       string              `json:"error,omitempty"`
	Predictions []hscode.Prediction `json:"predictions"`
}

// Client talks to the classification API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. timeout <= 0 leaves the deadline to the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Classify posts description and decodes the reply whatever its status code.
// A returned error means the API could not be reached or did not answer with JSON.
func (c *Client) Classify(ctx context.Context, description string) (*APIResponse, int, error) {
	body, err := json.Marshal(ClassifyRequest{Description: description})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var result APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	return &result, resp.StatusCode, nil
}

// Health checks that the API answers on /healthz.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("classification API returned status %d", resp.StatusCode)
	}
	return nil
}
