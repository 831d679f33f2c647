// Package geofetch aggregates the per-point signals from the upstream
// geodata services. Every sub-fetch is independently cached and
// independently degraded: a Fetch never fails, it returns whatever subset of
// signals it could obtain.
package geofetch

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/sigcache"
	"github.com/terraplan/siteplan/internal/signal"
	"github.com/terraplan/siteplan/pkg/power"
)

// Fetch-level fallback distances used when a proximity query fails or finds
// no feature within the search radius. These differ from the scoring
// defaults: a feature known to be absent nearby is worse information than no
// query at all.
const (
	FallbackRoadKm  = 5.0
	FallbackWaterKm = 3.0
)

// Default cache lifetimes per signal class.
const (
	DefaultClimateTTL    = time.Hour
	DefaultProximityTTL  = time.Hour
	DefaultPopulationTTL = 24 * time.Hour
)

// ClimateProvider returns a daily climate summary for a point and range.
type ClimateProvider interface {
	DailySummary(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*power.Summary, error)
}

// VegetationProvider returns the mean vegetation index in [0,1], or nil when
// no observations exist.
type VegetationProvider interface {
	MeanIndex(ctx context.Context, coord geo.Coordinate, dr geo.DateRange) (*float64, error)
}

// PopulationProvider estimates the population around a point for a year.
type PopulationProvider interface {
	Population(ctx context.Context, coord geo.Coordinate, year int) (int, error)
}

// ProximityProvider finds nearest-feature distances. Nil with nil error
// means no feature within the search radius.
type ProximityProvider interface {
	NearestRoadKm(ctx context.Context, coord geo.Coordinate) (*float64, error)
	NearestWaterKm(ctx context.Context, coord geo.Coordinate) (*float64, error)
}

// TTLs configures the per-signal cache lifetimes.
type TTLs struct {
	Climate    time.Duration
	Proximity  time.Duration
	Population time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTTLs overrides the cache lifetimes. Zero fields keep their defaults.
func WithTTLs(t TTLs) Option {
	return func(f *Fetcher) {
		if t.Climate > 0 {
			f.ttl.Climate = t.Climate
		}
		if t.Proximity > 0 {
			f.ttl.Proximity = t.Proximity
		}
		if t.Population > 0 {
			f.ttl.Population = t.Population
		}
	}
}

// WithTimeout bounds each individual sub-fetch.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// Fetcher aggregates the four signal sources behind a cache.
type Fetcher struct {
	climate    ClimateProvider
	vegetation VegetationProvider
	population PopulationProvider
	proximity  ProximityProvider
	cache      sigcache.Cache

	ttl     TTLs
	timeout time.Duration
}

// NewFetcher wires the providers and cache together.
func NewFetcher(climate ClimateProvider, vegetation VegetationProvider, population PopulationProvider, proximity ProximityProvider, cache sigcache.Cache, opts ...Option) *Fetcher {
	f := &Fetcher{
		climate:    climate,
		vegetation: vegetation,
		population: population,
		proximity:  proximity,
		cache:      cache,
		ttl: TTLs{
			Climate:    DefaultClimateTTL,
			Proximity:  DefaultProximityTTL,
			Population: DefaultPopulationTTL,
		},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type climateRecord struct {
	MeanTemp     *float64 `json:"mean_temp,omitempty"`
	PrecipTotal  *float64 `json:"precip_total,omitempty"`
	ValidDays    int      `json:"valid_days"`
	MeanHumidity *float64 `json:"mean_humidity,omitempty"`
	MeanSolar    *float64 `json:"mean_solar,omitempty"`
	MeanWind     *float64 `json:"mean_wind,omitempty"`
}

type indexRecord struct {
	Value *float64 `json:"value"`
}

type countRecord struct {
	Count int `json:"count"`
}

type distanceRecord struct {
	Km *float64 `json:"km"`
}

// Fetch gathers all signals for a coordinate. Overrides bypass the matching
// sub-fetch entirely, including its cache. The returned bundle records which
// distances came from fetch-level fallbacks.
func (f *Fetcher) Fetch(ctx context.Context, coord geo.Coordinate, dr geo.DateRange, ov signal.Overrides) signal.Bundle {
	var (
		b                           signal.Bundle
		roadFallback, waterFallback bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rec := fetchCached(f, gctx, "climate", coord, dr, power.DefaultParameters, f.ttl.Climate,
			func(ctx context.Context) (climateRecord, bool) {
				sum, err := f.climate.DailySummary(ctx, coord, dr)
				if err != nil || sum == nil {
					zap.L().Warn("climate fetch failed", zap.String("coord", coord.String()), zap.Error(err))
					return climateRecord{}, false
				}
				return climateRecord{
					MeanTemp:     sum.MeanTemp,
					PrecipTotal:  sum.PrecipTotal,
					ValidDays:    sum.ValidDays,
					MeanHumidity: sum.MeanHumidity,
					MeanSolar:    sum.MeanSolar,
					MeanWind:     sum.MeanWind,
				}, true
			})
		b.MeanTemp = rec.MeanTemp
		b.PrecipTotal = rec.PrecipTotal
		b.ValidDays = rec.ValidDays
		b.MeanHumidity = rec.MeanHumidity
		b.MeanSolar = rec.MeanSolar
		b.MeanWind = rec.MeanWind
		return nil
	})

	g.Go(func() error {
		if ov.NDVI != nil {
			b.NDVI = ov.NDVI
			return nil
		}
		rec := fetchCached(f, gctx, "ndvi", coord, dr, "mean", f.ttl.Climate,
			func(ctx context.Context) (indexRecord, bool) {
				v, err := f.vegetation.MeanIndex(ctx, coord, dr)
				if err != nil {
					zap.L().Warn("vegetation fetch failed", zap.String("coord", coord.String()), zap.Error(err))
					return indexRecord{}, false
				}
				return indexRecord{Value: v}, true
			})
		b.NDVI = rec.Value
		return nil
	})

	g.Go(func() error {
		if ov.Population != nil {
			b.Population = ov.Population
			return nil
		}
		year := dr.End.Year()
		rec, ok := fetchCachedOK(f, gctx, "population", coord, dr, "year", f.ttl.Population,
			func(ctx context.Context) (countRecord, bool) {
				n, err := f.population.Population(ctx, coord, year)
				if err != nil {
					zap.L().Warn("population fetch failed", zap.String("coord", coord.String()), zap.Error(err))
					return countRecord{}, false
				}
				return countRecord{Count: n}, true
			})
		if ok {
			b.Population = &rec.Count
		}
		return nil
	})

	g.Go(func() error {
		if ov.RoadKm != nil {
			b.RoadKm = ov.RoadKm
		} else {
			b.RoadKm, roadFallback = f.distance(gctx, "road", coord, dr, f.proximity.NearestRoadKm, FallbackRoadKm)
		}
		return nil
	})

	g.Go(func() error {
		if ov.WaterKm != nil {
			b.WaterKm = ov.WaterKm
		} else {
			b.WaterKm, waterFallback = f.distance(gctx, "water", coord, dr, f.proximity.NearestWaterKm, FallbackWaterKm)
		}
		return nil
	})

	_ = g.Wait()

	if roadFallback {
		b.Fallbacks = append(b.Fallbacks, signal.NameRoad)
	}
	if waterFallback {
		b.Fallbacks = append(b.Fallbacks, signal.NameWater)
	}
	return b
}

// distance resolves one proximity signal. A failed query or an empty result
// yields the fallback distance and marks the signal as degraded.
func (f *Fetcher) distance(ctx context.Context, kind string, coord geo.Coordinate, dr geo.DateRange, query func(context.Context, geo.Coordinate) (*float64, error), fallback float64) (*float64, bool) {
	rec, ok := fetchCachedOK(f, ctx, kind, coord, dr, "nearest", f.ttl.Proximity,
		func(ctx context.Context) (distanceRecord, bool) {
			km, err := query(ctx, coord)
			if err != nil {
				zap.L().Warn("proximity fetch failed",
					zap.String("kind", kind),
					zap.String("coord", coord.String()),
					zap.Error(err))
				return distanceRecord{}, false
			}
			return distanceRecord{Km: km}, true
		})
	if !ok || rec.Km == nil {
		v := fallback
		return &v, true
	}
	return rec.Km, false
}

// fetchCached is fetchCachedOK discarding the success flag, for sub-fetches
// whose zero record already represents total absence.
func fetchCached[T any](f *Fetcher, ctx context.Context, kind string, coord geo.Coordinate, dr geo.DateRange, params string, ttl time.Duration, fn func(context.Context) (T, bool)) T {
	rec, _ := fetchCachedOK(f, ctx, kind, coord, dr, params, ttl, fn)
	return rec
}

// fetchCachedOK serves one sub-fetch through the cache. Only successful
// upstream responses are cached; failures are retried on the next Fetch.
func fetchCachedOK[T any](f *Fetcher, ctx context.Context, kind string, coord geo.Coordinate, dr geo.DateRange, params string, ttl time.Duration, fn func(context.Context) (T, bool)) (T, bool) {
	var rec T

	key := sigcache.Key(kind, coord, dr, params)
	if raw, ok := f.cache.Get(key); ok {
		if err := json.Unmarshal(raw, &rec); err == nil {
			return rec, true
		}
		zap.L().Warn("discarding corrupt cache entry", zap.String("key", key))
	}

	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	rec, ok := fn(fctx)
	if !ok {
		var zero T
		return zero, false
	}

	if raw, err := json.Marshal(rec); err == nil {
		f.cache.Set(key, raw, ttl)
	}
	return rec, true
}
