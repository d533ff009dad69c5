package scores

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MRamiBalles/SnakeArcade/server/internal/engine"
)

// Client consumes a remote score service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Submit posts a score. It implements engine.Submitter.
func (c *Client) Submit(ctx context.Context, sub engine.ScoreSubmission) (string, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("failed to encode score: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/save-score/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var resp SaveResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// List fetches the leaderboard for a difficulty ("" or "all" for every level).
func (c *Client) List(ctx context.Context, difficulty string) ([]Entry, error) {
	u := c.baseURL + "/api/high-scores/"
	if difficulty != "" {
		u += "?difficulty=" + url.QueryEscape(difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	var resp ListResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return resp.Scores, nil
}

// do sends req and decodes the envelope. A success=false body becomes an error.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("score service unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw := new(bytes.Buffer)
	if _, err := raw.ReadFrom(resp.Body); err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope SaveResponse
	if err := json.Unmarshal(raw.Bytes(), &envelope); err != nil {
		return fmt.Errorf("unexpected response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !envelope.Success {
		return fmt.Errorf("score service rejected request (%d): %s", resp.StatusCode, envelope.Message)
	}
	if err := json.Unmarshal(raw.Bytes(), out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
