package batch

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/signal"
)

type fakeFetcher struct {
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, _ geo.Coordinate, _ geo.DateRange, ov signal.Overrides) signal.Bundle {
	f.calls.Add(1)
	b := signal.Bundle{
		MeanTemp:    signal.Float(23),
		PrecipTotal: signal.Float(1500),
		NDVI:        signal.Float(0.5),
		Population:  signal.Int(4000),
		RoadKm:      signal.Float(1),
		WaterKm:     signal.Float(2),
		ValidDays:   30,
	}
	if ov.NDVI != nil {
		b.NDVI = ov.NDVI
	}
	return b
}

func validPoints(n int) []Point {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{Lat: signal.Float(40 + float64(i)*0.01), Lon: signal.Float(-3), StructureType: "park"}
	}
	return points
}

func TestScoreBatchRejectsOversizedBeforeFetching(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	c := New(fetcher)

	res, err := c.ScoreBatch(context.Background(), validPoints(DefaultMaxPoints+1), geo.DateRange{})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.Zero(t, fetcher.calls.Load(), "no fetch may happen for a rejected batch")
}

func TestScoreBatchAtLimit(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	c := New(fetcher)

	res, err := c.ScoreBatch(context.Background(), validPoints(DefaultMaxPoints), geo.DateRange{})

	require.NoError(t, err)
	assert.Len(t, res.Results, DefaultMaxPoints)
	assert.Empty(t, res.Warnings)
}

func TestScoreBatchEmpty(t *testing.T) {
	t.Parallel()

	c := New(&fakeFetcher{})

	res, err := c.ScoreBatch(context.Background(), nil, geo.DateRange{})

	require.NoError(t, err)
	assert.Empty(t, res.Results)
	assert.Empty(t, res.Warnings)
	_, parseErr := uuid.Parse(res.BatchID)
	assert.NoError(t, parseErr)
}

func TestScoreBatchIsolatesBadPoints(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	c := New(fetcher)

	points := []Point{
		{Lat: signal.Float(40), Lon: signal.Float(-3), StructureType: "park"},
		{Lat: signal.Float(95), Lon: signal.Float(-3), StructureType: "park"},   // invalid latitude
		{Lat: signal.Float(41), Lon: signal.Float(-3), StructureType: "castle"}, // unknown type
		{Lat: signal.Float(42), Lon: signal.Float(-3), StructureType: "hospital"},
	}

	res, err := c.ScoreBatch(context.Background(), points, geo.DateRange{})

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	require.Len(t, res.Warnings, 2)

	assert.Equal(t, 0, res.Results[0].Index)
	assert.Equal(t, 3, res.Results[1].Index)
	assert.Equal(t, 1, res.Warnings[0].Index)
	assert.Contains(t, res.Warnings[0].Message, "latitude")
	assert.Equal(t, 2, res.Warnings[1].Index)
	assert.Contains(t, res.Warnings[1].Message, "castle")

	// Only the valid points cost a fetch.
	assert.Equal(t, int32(2), fetcher.calls.Load())
}

func TestScoreBatchWarnsOnMissingCoordinates(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{}
	c := New(fetcher)

	points := []Point{
		{StructureType: "park"},                        // no coordinates at all
		{Lat: signal.Float(40), StructureType: "park"}, // longitude absent
		{Lat: signal.Float(40), Lon: signal.Float(-3)}, // complete, default type
	}

	res, err := c.ScoreBatch(context.Background(), points, geo.DateRange{})

	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	require.Len(t, res.Warnings, 2)

	assert.Equal(t, 2, res.Results[0].Index)
	assert.Equal(t, 0, res.Warnings[0].Index)
	assert.Contains(t, res.Warnings[0].Message, "missing coordinates")
	assert.Equal(t, 1, res.Warnings[1].Index)
	assert.Contains(t, res.Warnings[1].Message, "missing coordinates")

	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestScoreBatchResultsOrderedByIndex(t *testing.T) {
	t.Parallel()

	c := New(&fakeFetcher{}, WithConcurrency(4))

	res, err := c.ScoreBatch(context.Background(), validPoints(20), geo.DateRange{})

	require.NoError(t, err)
	require.Len(t, res.Results, 20)
	for i, pr := range res.Results {
		assert.Equal(t, i, pr.Index)
	}
}

func TestScoreBatchAppliesPerPointOverrides(t *testing.T) {
	t.Parallel()

	c := New(&fakeFetcher{})

	points := []Point{
		{Lat: signal.Float(40), Lon: signal.Float(-3), StructureType: "park"},
		{Lat: signal.Float(40), Lon: signal.Float(-3), StructureType: "park", Overrides: signal.Overrides{NDVI: signal.Float(1.0)}},
	}

	res, err := c.ScoreBatch(context.Background(), points, geo.DateRange{})

	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Greater(t, res.Results[1].Score.Score, res.Results[0].Score.Score)
}
