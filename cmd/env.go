package main

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/terraplan/siteplan/internal/batch"
	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/geofetch"
	"github.com/terraplan/siteplan/internal/resilience"
	"github.com/terraplan/siteplan/internal/sigcache"
	"github.com/terraplan/siteplan/pkg/ndvi"
	"github.com/terraplan/siteplan/pkg/power"
	"github.com/terraplan/siteplan/pkg/proximity"
	"github.com/terraplan/siteplan/pkg/worldpop"
)

// appEnv bundles the wired fetch and scoring stack for the commands.
type appEnv struct {
	Cache   sigcache.Cache
	Fetcher *geofetch.Fetcher
	Batch   *batch.Coordinator

	closers []func()
}

// Close releases backing resources in reverse construction order.
func (e *appEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// initApp builds the full stack from the loaded configuration.
func initApp() (*appEnv, error) {
	retry := resilience.DefaultPolicy()
	if cfg.Fetch.RetryAttempts > 0 {
		retry.Attempts = cfg.Fetch.RetryAttempts
	}

	env := &appEnv{}

	switch cfg.Cache.Backend {
	case "sqlite":
		store, err := sigcache.NewSQLite(cfg.Cache.Path)
		if err != nil {
			return nil, eris.Wrap(err, "init: open cache")
		}
		env.Cache = store
		env.closers = append(env.closers, func() { _ = store.Close() })
	default:
		env.Cache = sigcache.NewMemory()
	}

	climate := power.NewClient(
		power.WithBaseURL(cfg.Power.BaseURL),
		power.WithParameters(cfg.Power.Parameters),
		power.WithRetryPolicy(retry),
	)
	vegetation := ndvi.NewClient(cfg.NDVI.BaseURL, ndvi.WithRetryPolicy(retry))
	population := worldpop.NewClient(cfg.Population.BaseURL, worldpop.WithRetryPolicy(retry))
	prox := proximity.NewClient(cfg.Overpass.Endpoint,
		proximity.WithRadiusMeters(cfg.Overpass.RadiusMeters),
		proximity.WithRetryPolicy(retry),
	)

	env.Fetcher = geofetch.NewFetcher(climate, vegetation, population, prox, env.Cache,
		geofetch.WithTimeout(time.Duration(cfg.Fetch.TimeoutSecs)*time.Second),
		geofetch.WithTTLs(geofetch.TTLs{
			Climate:    time.Duration(cfg.Cache.ClimateTTLHours) * time.Hour,
			Proximity:  time.Duration(cfg.Cache.ProximityTTLHours) * time.Hour,
			Population: time.Duration(cfg.Cache.PopulationTTLHours) * time.Hour,
		}),
	)

	env.Batch = batch.New(env.Fetcher,
		batch.WithMaxPoints(cfg.Batch.MaxPoints),
		batch.WithConcurrency(cfg.Batch.MaxConcurrentPoints),
	)

	return env, nil
}

// parseDateRange parses optional YYYY-MM-DD bounds, falling back to the
// default lookback window when both are empty.
func parseDateRange(start, end string) (geo.DateRange, error) {
	var dr geo.DateRange

	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return geo.DateRange{}, eris.Wrapf(err, "parse start date %q", start)
		}
		dr.Start = t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return geo.DateRange{}, eris.Wrapf(err, "parse end date %q", end)
		}
		dr.End = t
	}
	if dr.Start.IsZero() != dr.End.IsZero() {
		return geo.DateRange{}, eris.New("start and end must be given together")
	}

	return dr.OrDefault(time.Now().UTC()), nil
}
