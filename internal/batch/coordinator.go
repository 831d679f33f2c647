// Package batch scores many points in one request with bounded concurrency.
// Oversized batches are rejected wholesale before any fetching starts;
// individual bad points degrade to warnings without affecting their siblings.
package batch

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/scoring"
	"github.com/terraplan/siteplan/internal/signal"
)

const (
	// DefaultMaxPoints bounds a single batch request.
	DefaultMaxPoints = 50

	defaultConcurrency = 8
)

// Fetcher is the signal source used for each point.
type Fetcher interface {
	Fetch(ctx context.Context, coord geo.Coordinate, dr geo.DateRange, ov signal.Overrides) signal.Bundle
}

// Point is one batch entry. Lat and Lon are pointers so a payload that
// omits them is caught as malformed rather than decoded as (0, 0).
// StructureType defaults to generic when empty.
type Point struct {
	Lat           *float64         `json:"lat"`
	Lon           *float64         `json:"lon"`
	StructureType string           `json:"structure_type,omitempty"`
	Overrides     signal.Overrides `json:"overrides,omitempty"`
}

// PointResult pairs a scored point with its position in the request.
type PointResult struct {
	Index int            `json:"index"`
	Point Point          `json:"point"`
	Score scoring.Result `json:"result"`
}

// Warning records why one point could not be scored.
type Warning struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// Result is the outcome of a batch run. Results and Warnings are each
// ordered by request index; every input point appears in exactly one of them.
type Result struct {
	BatchID  string         `json:"batch_id"`
	Results  []*PointResult `json:"results"`
	Warnings []Warning      `json:"warnings,omitempty"`
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithMaxPoints overrides the wholesale rejection threshold.
func WithMaxPoints(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxPoints = n
		}
	}
}

// WithConcurrency bounds the number of points scored in parallel.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// Coordinator fans a batch of points across the fetcher and scores each one.
type Coordinator struct {
	fetcher     Fetcher
	maxPoints   int
	concurrency int
}

// New creates a Coordinator over the given fetcher.
func New(fetcher Fetcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     fetcher,
		maxPoints:   DefaultMaxPoints,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ScoreBatch validates and scores every point. The only batch-level failure
// is exceeding the point limit, checked before any fetch is issued.
func (c *Coordinator) ScoreBatch(ctx context.Context, points []Point, dr geo.DateRange) (*Result, error) {
	if len(points) > c.maxPoints {
		return nil, eris.Errorf("batch: %d points exceeds the limit of %d", len(points), c.maxPoints)
	}

	res := &Result{BatchID: uuid.NewString()}

	type job struct {
		index int
		coord geo.Coordinate
		st    scoring.StructureType
	}

	var (
		mu   sync.Mutex
		jobs []job
	)

	warn := func(i int, msg string) {
		res.Warnings = append(res.Warnings, Warning{Index: i, Message: msg})
	}

	// Validate everything up front so a malformed point never costs a fetch.
	for i, p := range points {
		if p.Lat == nil || p.Lon == nil {
			warn(i, "missing coordinates")
			continue
		}
		coord := geo.Coordinate{Lat: *p.Lat, Lon: *p.Lon}
		if err := coord.Validate(); err != nil {
			warn(i, err.Error())
			continue
		}
		st, err := scoring.ParseStructureType(p.StructureType)
		if err != nil {
			warn(i, err.Error())
			continue
		}
		jobs = append(jobs, job{index: i, coord: coord, st: st})
	}

	slots := make([]*PointResult, len(points))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			bundle := c.fetcher.Fetch(gctx, j.coord, dr, points[j.index].Overrides)
			scored := scoring.Score(bundle, j.st)

			mu.Lock()
			slots[j.index] = &PointResult{Index: j.index, Point: points[j.index], Score: scored}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for _, pr := range slots {
		if pr != nil {
			res.Results = append(res.Results, pr)
		}
	}
	sort.Slice(res.Warnings, func(a, b int) bool { return res.Warnings[a].Index < res.Warnings[b].Index })

	return res, nil
}
