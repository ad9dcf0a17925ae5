package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client resolves coordinates to display addresses against a
// Nominatim-compatible endpoint. Lookups are cached in Redis: students
// clock from the same spot every day, and the upstream rate limits hard.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	cache    *redis.Client
	cacheTTL time.Duration
}

// New creates a client. cache may be nil to disable caching.
func New(baseURL string, cache *redis.Client, cacheTTL time.Duration) *Client {
	return &Client{
		BaseURL:  baseURL,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Reverse returns a human-readable address for the coordinates. Callers
// treat failures as non-fatal; the UI falls back to raw coordinates.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	key := fmt.Sprintf("tracesys:geocode:%.4f:%.4f", lat, lon)
	if c.cache != nil {
		if addr, err := c.cache.Get(ctx, key).Result(); err == nil && addr != "" {
			return addr, nil
		}
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "tracesys-attendance")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("geocode error %s: %s", resp.Status, string(body))
	}

	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if out.DisplayName == "" {
		return "", fmt.Errorf("no address for %.4f,%.4f", lat, lon)
	}

	if c.cache != nil {
		_ = c.cache.Set(ctx, key, out.DisplayName, c.cacheTTL).Err()
	}
	return out.DisplayName, nil
}
