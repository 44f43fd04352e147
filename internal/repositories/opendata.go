package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PedroFenixia/aemet-temperaturas/pkg/observe"
)

// RetryPolicy bounds the retry loop of the OpenData client. The backoff
// for HTTP 429 grows linearly: RateLimitBackoff * (attempt + 1).
type RetryPolicy struct {
	MaxAttempts       int
	RateLimitBackoff  time.Duration
	NetworkRetryPause time.Duration
}

// SleepFunc suspends for d or until the context is cancelled.
type SleepFunc func(ctx context.Context, d time.Duration) error

func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// OpenDataClient talks to the AEMET OpenData API. Every lookup is two
// hops: an authenticated GET returns a small envelope whose "datos"
// field points at the real payload, fetched with a second plain GET.
type OpenDataClient struct {
	baseURL    string
	apiKey     string
	httpClient HTTPClient
	retry      RetryPolicy
	sleep      SleepFunc
	l          *observe.Logger
}

func NewOpenDataClient(baseURL, apiKey string, timeout time.Duration, retry RetryPolicy, l *observe.Logger) *OpenDataClient {
	return &OpenDataClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		sleep:      Sleep,
		l:          l,
	}
}

// metaEnvelope is the first-hop response.
type metaEnvelope struct {
	State       int    `json:"estado"`
	Data        string `json:"datos"`
	Description string `json:"descripcion"`
}

// Fetch performs the two-hop lookup. Rate limiting (429) and network
// failures are retried within the policy; any other problem fails fast.
func (c *OpenDataClient) Fetch(ctx context.Context, endpoint string) (json.RawMessage, error) {
	var lastErr error

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		payload, retry, err := c.fetchOnce(ctx, endpoint, attempt)
		if err == nil {
			return payload, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("exhausted retries for %s: %w", endpoint, lastErr)
}

// fetchOnce runs one attempt. The bool reports whether the failure is
// worth retrying; the required backoff has already been slept.
func (c *OpenDataClient) fetchOnce(ctx context.Context, endpoint string, attempt int) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("api_key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attempt < c.retry.MaxAttempts-1 {
			if serr := c.sleep(ctx, c.retry.NetworkRetryPause); serr != nil {
				return nil, false, serr
			}
		}
		return nil, true, fmt.Errorf("failed to do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := c.retry.RateLimitBackoff * time.Duration(attempt+1)
		c.l.Warning("rate limited by AEMET API", map[string]any{
			"endpoint": endpoint,
			"wait":     wait.String(),
		})
		if serr := c.sleep(ctx, wait); serr != nil {
			return nil, false, serr
		}
		return nil, true, fmt.Errorf("HTTP 429: rate limited")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("HTTP error (status %d): %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read response body: %w", err)
	}

	var meta metaEnvelope
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, false, fmt.Errorf("failed to parse metadata envelope: %w", err)
	}
	if meta.State != http.StatusOK {
		return nil, false, fmt.Errorf("API state %d: %s", meta.State, meta.Description)
	}
	if meta.Data == "" {
		return nil, false, fmt.Errorf("metadata envelope has no data URL")
	}

	return c.fetchData(ctx, meta.Data, attempt)
}

// fetchData is the second, unauthenticated hop.
func (c *OpenDataClient) fetchData(ctx context.Context, dataURL string, attempt int) (json.RawMessage, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create data request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if attempt < c.retry.MaxAttempts-1 {
			if serr := c.sleep(ctx, c.retry.NetworkRetryPause); serr != nil {
				return nil, false, serr
			}
		}
		return nil, true, fmt.Errorf("failed to fetch data payload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("data payload HTTP error (status %d): %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read data payload: %w", err)
	}

	if !json.Valid(body) {
		return nil, false, fmt.Errorf("data payload is not valid JSON")
	}

	return json.RawMessage(body), false, nil
}
