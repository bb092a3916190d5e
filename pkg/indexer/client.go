// Package indexer is a thin client for the historical-data endpoint, an
// HTTP proxy in front of a third-party indexing API. It returns finalized
// past swaps; price conversion is left to the caller so the live and
// historical paths share one converter.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Swap is one finalized historical observation.
type Swap struct {
	Timestamp    int64  `json:"timestamp"`    // seconds since epoch
	SqrtPriceX96 string `json:"sqrtPriceX96"` // decimal string, Q64.96
}

type swapsResponse struct {
	Swaps []Swap `json:"swaps"`
	Error string `json:"error,omitempty"`
}

// GetSwaps fetches swaps at or after the given start time.
func (c *Client) GetSwaps(ctx context.Context, from time.Time) ([]Swap, error) {
	endpoint := fmt.Sprintf("%s/swaps?from=%d", c.baseURL, from.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("indexer error: status %d: %s", resp.StatusCode, body)
	}

	var parsed swapsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("indexer error payload: %s", parsed.Error)
	}

	return parsed.Swaps, nil
}
