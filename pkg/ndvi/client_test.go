package ndvi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplan/siteplan/internal/geo"
)

var testRange = geo.DateRange{
	Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
}

func TestMeanIndex_NativeScale(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2026-01-01", q.Get("startDate"))
		assert.Equal(t, "2026-01-31", q.Get("endDate"))
		w.Write([]byte(`{"subset": [
			{"calendar_date": "2026-01-01", "value": 0.4},
			{"calendar_date": "2026-01-17", "value": 0.6}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.MeanIndex(context.Background(), geo.Coordinate{Lat: 10, Lon: 20}, testRange)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.5, *got, 1e-9)
}

func TestMeanIndex_IntegerScaleAutoDetect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subset": [
			{"calendar_date": "2026-01-01", "value": 4000},
			{"calendar_date": "2026-01-17", "value": 6000}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.MeanIndex(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.5, *got, 1e-9)
}

func TestMeanIndex_Empty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subset": []}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.MeanIndex(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMeanIndex_NullValuesSkipped(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"subset": [
			{"calendar_date": "2026-01-01", "value": null},
			{"calendar_date": "2026-01-17", "value": 0.8}
		]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	got, err := client.MeanIndex(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.8, *got, 1e-9)
}

func TestMeanIndex_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.MeanIndex(context.Background(), geo.Coordinate{}, testRange)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.25, Normalize(0.25), 1e-9)
	assert.InDelta(t, 0.25, Normalize(2500), 1e-9)
	assert.InDelta(t, 1.0, Normalize(1.0), 1e-9)
	assert.InDelta(t, 1.0, Normalize(20000), 1e-9)
	assert.Zero(t, Normalize(-0.3))
}
