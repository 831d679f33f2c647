package power

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terraplan/siteplan/internal/geo"
	"github.com/terraplan/siteplan/internal/resilience"
)

var testRange = geo.DateRange{
	Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
}

func fastRetry() resilience.Policy {
	return resilience.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDailySummary_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		q := r.URL.Query()
		assert.Equal(t, "48.8566", q.Get("latitude"))
		assert.Equal(t, "20260101", q.Get("start"))
		assert.Equal(t, "20260103", q.Get("end"))
		assert.Equal(t, "JSON", q.Get("format"))
		assert.Equal(t, "RE", q.Get("community"))
		assert.Equal(t, DefaultParameters, q.Get("parameters"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"properties": {
				"parameter": {
					"T2M":         {"20260101": 20.0, "20260102": 22.0, "20260103": 24.0},
					"PRECTOTCORR": {"20260101": 1.5, "20260102": 0.0, "20260103": 4.5},
					"RH2M":        {"20260101": 60.0, "20260102": 70.0, "20260103": 80.0},
					"WS2M":        {"20260101": 3.0, "20260102": 5.0, "20260103": 4.0}
				}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.DailySummary(context.Background(), geo.Coordinate{Lat: 48.8566, Lon: 2.3522}, testRange)

	require.NoError(t, err)
	require.NotNil(t, got.MeanTemp)
	assert.InDelta(t, 22.0, *got.MeanTemp, 1e-9)
	require.NotNil(t, got.PrecipTotal)
	assert.InDelta(t, 6.0, *got.PrecipTotal, 1e-9)
	require.NotNil(t, got.MeanHumidity)
	assert.InDelta(t, 70.0, *got.MeanHumidity, 1e-9)
	require.NotNil(t, got.MeanWind)
	assert.InDelta(t, 4.0, *got.MeanWind, 1e-9)
	assert.Nil(t, got.MeanSolar)
	assert.Equal(t, 3, got.ValidDays)
}

func TestDailySummary_StripsSentinels(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"properties": {
				"parameter": {
					"T2M":         {"20260101": -999.0, "20260102": 18.0, "20260103": ""},
					"PRECTOTCORR": {"20260101": -999.0, "20260102": 2.0, "20260103": null}
				}
			}
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.DailySummary(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	require.NotNil(t, got.MeanTemp)
	assert.InDelta(t, 18.0, *got.MeanTemp, 1e-9)
	require.NotNil(t, got.PrecipTotal)
	assert.InDelta(t, 2.0, *got.PrecipTotal, 1e-9)
	assert.Equal(t, 1, got.ValidDays)
}

func TestDailySummary_EmptySeries(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"properties": {"parameter": {}}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	got, err := client.DailySummary(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	assert.Nil(t, got.MeanTemp)
	assert.Nil(t, got.PrecipTotal)
	assert.Zero(t, got.ValidDays)
}

func TestDailySummary_RetryOn503(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"properties": {"parameter": {"T2M": {"20260101": 10.0}}}}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	got, err := client.DailySummary(context.Background(), geo.Coordinate{}, testRange)

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, 1, got.ValidDays)
}

func TestDailySummary_PermanentErrorNotRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetryPolicy(fastRetry()))
	_, err := client.DailySummary(context.Background(), geo.Coordinate{}, testRange)

	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
	assert.Contains(t, err.Error(), "422")
}

func TestDailySummary_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.DailySummary(context.Background(), geo.Coordinate{}, testRange)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
