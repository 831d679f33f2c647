// Package power provides a client for a NASA-POWER-style temporal daily
// point climate API.
package power

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

// DefaultParameters is the daily parameter list requested from the climate
// service: temperature, precipitation, humidity, solar radiation, wind.
const DefaultParameters = "T2M,PRECTOTCORR,RH2M,ALLSKY_SFC_SW_DWN,WS2M"

// missingSentinel marks absent daily values in the upstream response.
const missingSentinel = -999.0

// Summary aggregates a point's daily climate series over a date range.
// Precipitation is the period total; divide by ValidDays for a daily rate.
type Summary struct {
	MeanTemp     *float64 `json:"mean_temp,omitempty"`    // °C
	PrecipTotal  *float64 `json:"precip_total,omitempty"` // mm over the range
	MeanHumidity *float64 `json:"mean_humidity,omitempty"`
	MeanSolar    *float64 `json:"mean_solar,omitempty"`
	MeanWind     *float64 `json:"mean_wind,omitempty"`
	ValidDays    int      `json:"valid_days"` // valid daily temperature samples
}

// Client defines the climate service operations.
type Client interface {
	// DailySummary fetches and aggregates the daily series for a coordinate.
	DailySummary(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*Summary, error)
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

// WithParameters overrides the requested parameter list.
func WithParameters(params string) Option {
	return func(c *httpClient) { c.parameters = params }
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *httpClient) { c.retry = p }
}

type httpClient struct {
	baseURL    string
	community  string
	parameters string
	http       *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retry      resilience.Policy
}

// NewClient creates a climate client with a 20s timeout, per-client rate
// limiting, and a circuit breaker.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:    "https://power.larc.nasa.gov/api/temporal/daily/point",
		community:  "RE",
		parameters: DefaultParameters,
		http:       &http.Client{Timeout: 20 * time.Second},
		limiter:    rate.NewLimiter(2, 2),
		retry:      resilience.DefaultPolicy(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "power",
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

// powerResponse mirrors the upstream payload: per-parameter maps keyed by
// YYYYMMDD day strings.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]any `json:"parameter"`
	} `json:"properties"`
}

func (c *httpClient) DailySummary(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*Summary, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "power: rate limit")
	}

	start, end := dr.Compact()
	params := url.Values{
		"latitude":   {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"longitude":  {strconv.FormatFloat(coord.Lon, 'f', -1, 64)},
		"start":      {start},
		"end":        {end},
		"format":     {"JSON"},
		"community":  {c.community},
		"parameters": {c.parameters},
	}
	reqURL := c.baseURL + "?" + params.Encode()

	body, err := resilience.Do(ctx, c.retry, "power", func(ctx context.Context) ([]byte, error) {
		return c.get(ctx, reqURL)
	})
	if err != nil {
		return nil, err
	}

	var resp powerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "power: unmarshal response")
	}

	return summarize(resp.Properties.Parameter), nil
}

func (c *httpClient) get(ctx context.Context, reqURL string) ([]byte, error) {
	res, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "power: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "power: request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return nil, resilience.StatusError("power", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrap(err, "power: read body")
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]byte), nil
}

// summarize strips sentinel and malformed daily values, then aggregates:
// temperature/humidity/solar/wind as arithmetic means, precipitation as the
// period total. ValidDays counts valid temperature samples.
func summarize(parameters map[string]map[string]any) *Summary {
	s := &Summary{}

	temps := validValues(parameters["T2M"])
	if len(temps) > 0 {
		m := mean(temps)
		s.MeanTemp = &m
	}
	s.ValidDays = len(temps)

	if precip := validValues(parameters["PRECTOTCORR"]); len(precip) > 0 {
		total := 0.0
		for _, v := range precip {
			total += v
		}
		s.PrecipTotal = &total
	}
	if vals := validValues(parameters["RH2M"]); len(vals) > 0 {
		m := mean(vals)
		s.MeanHumidity = &m
	}
	if vals := validValues(parameters["ALLSKY_SFC_SW_DWN"]); len(vals) > 0 {
		m := mean(vals)
		s.MeanSolar = &m
	}
	if vals := validValues(parameters["WS2M"]); len(vals) > 0 {
		m := mean(vals)
		s.MeanWind = &m
	}

	return s
}

// validValues extracts parseable daily values, dropping the -999 sentinel,
// nulls, and empty strings.
func validValues(series map[string]any) []float64 {
	var out []float64
	for _, raw := range series {
		var v float64
		switch t := raw.(type) {
		case float64:
			v = t
		case string:
			if t == "" {
				continue
			}
			parsed, err := strconv.ParseFloat(t, 64)
			if err != nil {
				continue
			}
			v = parsed
		default:
			continue
		}
		if v <= missingSentinel {
			continue
		}
		out = append(out, v)
	}
	return out
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
