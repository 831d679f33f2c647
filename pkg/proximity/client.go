// Package proximity finds the nearest road and water features around a
// point via an Overpass-compatible query service.
package proximity

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/serjvanilla/go-overpass"
	"github.com/sony/gobreaker"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/resilience"
)

// DefaultRadiusMeters is the default feature search radius.
const DefaultRadiusMeters = 2500

// Client defines the proximity queries used by the fetch layer. A nil
// distance with nil error means no feature was found within the radius.
type Client interface {
	NearestRoadKm(ctx context.Context, coord geo.Coordinate) (*float64, error)
	NearestWaterKm(ctx context.Context, coord geo.Coordinate) (*float64, error)
}

// Option configures the client.
type Option func(*overpassClient)

// WithRadiusMeters overrides the search radius.
func WithRadiusMeters(m int) Option {
	return func(c *overpassClient) {
		if m > 0 {
			c.radiusM = m
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(p resilience.Policy) Option {
	return func(c *overpassClient) { c.retry = p }
}

type overpassClient struct {
	client  *overpass.Client
	radiusM int
	retry   resilience.Policy
	breaker *gobreaker.CircuitBreaker
}

// NewClient creates a proximity client against the given Overpass endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	client := overpass.NewWithSettings(endpoint, 2, &http.Client{Timeout: 25 * time.Second})
	c := &overpassClient{
		client:  &client,
		radiusM: DefaultRadiusMeters,
		retry:   resilience.DefaultPolicy(),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "overpass",
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

func (c *overpassClient) NearestRoadKm(ctx context.Context, coord geo.Coordinate) (*float64, error) {
	query := fmt.Sprintf(`
		[out:json][timeout:25];
		(
			way["highway"](around:%d,%.6f,%.6f);
			node["highway"](around:%d,%.6f,%.6f);
		);
		out body;
		>;
		out skel qt;
	`,
		c.radiusM, coord.Lat, coord.Lon,
		c.radiusM, coord.Lat, coord.Lon)

	return c.nearest(ctx, "road", coord, query)
}

func (c *overpassClient) NearestWaterKm(ctx context.Context, coord geo.Coordinate) (*float64, error) {
	query := fmt.Sprintf(`
		[out:json][timeout:25];
		(
			way["waterway"](around:%d,%.6f,%.6f);
			way["natural"="water"](around:%d,%.6f,%.6f);
			node["natural"="water"](around:%d,%.6f,%.6f);
		);
		out body;
		>;
		out skel qt;
	`,
		c.radiusM, coord.Lat, coord.Lon,
		c.radiusM, coord.Lat, coord.Lon,
		c.radiusM, coord.Lat, coord.Lon)

	return c.nearest(ctx, "water", coord, query)
}

// nearest runs the query and returns the minimum great-circle distance from
// the origin to any returned feature. Ways without a direct coordinate use
// the centroid of their member nodes as a label point; the member nodes
// themselves also count, which tightens the minimum for long features.
func (c *overpassClient) nearest(ctx context.Context, kind string, origin geo.Coordinate, query string) (*float64, error) {
	result, err := resilience.Do(ctx, c.retry, "overpass/"+kind, func(ctx context.Context) (*overpass.Result, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.breaker.Execute(func() (any, error) {
			r, err := c.client.Query(query)
			if err != nil {
				return nil, eris.Wrapf(err, "overpass: %s query", kind)
			}
			return &r, nil
		})
		if err != nil {
			return nil, err
		}
		return res.(*overpass.Result), nil
	})
	if err != nil {
		return nil, err
	}

	var best *float64
	consider := func(lat, lon float64) {
		d := geo.HaversineKm(origin, geo.Coordinate{Lat: lat, Lon: lon})
		if best == nil || d < *best {
			best = &d
		}
	}

	for _, node := range result.Nodes {
		consider(node.Lat, node.Lon)
	}
	for _, way := range result.Ways {
		if len(way.Nodes) == 0 {
			continue
		}
		var lat, lon float64
		for _, node := range way.Nodes {
			lat += node.Lat
			lon += node.Lon
		}
		n := float64(len(way.Nodes))
		consider(lat/n, lon/n)
	}

	return best, nil
}
