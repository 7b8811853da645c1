package enrichment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPClient talks to a getaddress.io-style autocomplete endpoint. It
// carries its own credentials and per-request timeout; retry policy
// belongs to the cache dispatcher, not here.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds a client for the given endpoint. timeout bounds a
// single request; zero means 15 seconds.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Query fetches address suggestions for a postcode or address fragment.
// A 429 response surfaces as ErrRateLimited so the dispatcher can back
// off and retry.
func (h *HTTPClient) Query(ctx context.Context, fragment string) ([]byte, error) {
	u := fmt.Sprintf("%s/autocomplete/%s?api-key=%s&all=true", h.baseURL, url.PathEscape(fragment), url.QueryEscape(h.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("enrichment: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("enrichment: request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("enrichment: read response: %w", err)
		}
		return body, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	default:
		return nil, fmt.Errorf("enrichment: unexpected status %d", resp.StatusCode)
	}
}
