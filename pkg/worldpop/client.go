// Package worldpop provides a client for a point population-density
// service.
package worldpop

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/resilience"
)

// countKeys are the response field names checked for the population count,
// in order; the first present numeric value wins. Providers disagree on the
// field name, hence the list.
var countKeys = []string{"total_population", "population", "pop", "count", "value"}

// Client defines the population service operations.
type Client interface {
	// Population returns the estimated population around the coordinate for
	// the given year.
	Population(ctx context.Context, coord geo.Coordinate, year int) (int, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

type httpClient struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	retry   resilience.Policy
}

// NewClient creates a population client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(2, 2),
		retry:   resilience.DefaultPolicy(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "worldpop",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Population(ctx context.Context, coord geo.Coordinate, year int) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, eris.Wrap(err, "worldpop: rate limit")
	}

	params := url.Values{
		"latitude":  {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"year":      {strconv.Itoa(year)},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	body, err := resilience.Do(ctx, c.retry, "worldpop", func(ctx context.Context) ([]byte, error) {
		res, err := c.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "worldpop: create request")
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "worldpop: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				return nil, resilience.StatusError("worldpop", resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		})
		if err != nil {
			return nil, err
		}
		return res.([]byte), nil
	})
	if err != nil {
		return 0, err
	}

	return parseCount(body)
}

// parseCount extracts the population count from a loosely-specified JSON
// object, trying each known key name in order.
func parseCount(body []byte) (int, error) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, eris.Wrap(err, "worldpop: unmarshal response")
	}

	// Some providers nest the counts under a "data" object.
	if data, ok := payload["data"].(map[string]any); ok {
		payload = data
	}

	for _, key := range countKeys {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case float64:
			return clampCount(v), nil
		case string:
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			return clampCount(parsed), nil
		}
	}

	return 0, eris.New("worldpop: no population field in response")
}

func clampCount(v float64) int {
	if v < 0 {
		return 0
	}
	return int(math.Round(v))
}
