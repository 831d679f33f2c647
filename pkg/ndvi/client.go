// Package ndvi provides a client for a vegetation-index point subset
// service.
package ndvi

import (
	"context"
	"encoding/json"
	"io"
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

// scaledThreshold separates native 0–1 index values from integer-scaled
// ones: anything above it is assumed to be on the 0–10000 scale.
const scaledThreshold = 1.5

// Client defines the vegetation service operations.
type Client interface {
	// MeanIndex returns the mean vegetation index over the range, normalized
	// to [0,1]. A nil value with nil error means the service returned no
	// observations.
	MeanIndex(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*float64, error)
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

// NewClient creates a vegetation-index client.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(2, 2),
		retry:   resilience.DefaultPolicy(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "ndvi",
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

// subsetResponse is the upstream observation list. Observations without a
// numeric value are skipped.
type subsetResponse struct {
	Subset []struct {
		Date  string   `json:"calendar_date"`
		Value *float64 `json:"value"`
	} `json:"subset"`
}

func (c *httpClient) MeanIndex(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ndvi: rate limit")
	}

	params := url.Values{
		"latitude":  {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"longitude": {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"startDate": {dr.Start.Format("2006-01-02")},
		"endDate":   {dr.End.Format("2006-01-02")},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	body, err := resilience.Do(ctx, c.retry, "ndvi", func(ctx context.Context) ([]byte, error) {
		res, err := c.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "ndvi: create request")
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.http.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "ndvi: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				return nil, resilience.StatusError("ndvi", resp.StatusCode)
			}
			return io.ReadAll(resp.Body)
		})
		if err != nil {
			return nil, err
		}
		return res.([]byte), nil
	})
	if err != nil {
		return nil, err
	}

	var resp subsetResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "ndvi: unmarshal response")
	}

	var sum float64
	var n int
	for _, obs := range resp.Subset {
		if obs.Value == nil {
			continue
		}
		sum += Normalize(*obs.Value)
		n++
	}
	if n == 0 {
		return nil, nil
	}

	m := sum / float64(n)
	return &m, nil
}

// Normalize converts a raw observation to the canonical [0,1] index.
// Integer-scaled sources (e.g. MODIS 0–10000) are detected by magnitude.
func Normalize(v float64) float64 {
	if v > scaledThreshold {
		v /= 10000
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
