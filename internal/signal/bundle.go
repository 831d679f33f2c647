// Package signal defines the aggregated per-point inputs to scoring.
package signal

// Canonical signal names, used in fallback audit lists and sub-score maps.
const (
	NameTemperature   = "temperature"
	NamePrecipitation = "precipitation"
	NameVegetation    = "vegetation"
	NamePopulation    = "population"
	NameRoad          = "road_distance"
	NameWater         = "water_distance"
)

// Bundle is the full set of signals fetched for one coordinate and date
// range. Optional fields are pointers: nil means the signal is absent, which
// is distinct from a zero value and triggers a documented default downstream.
//
// Precipitation is carried as the period total together with ValidDays; the
// daily average is derived only where a consumer needs it.
type Bundle struct {
	MeanTemp    *float64 `json:"mean_temp,omitempty"`    // °C
	PrecipTotal *float64 `json:"precip_total,omitempty"` // mm summed over the range
	NDVI        *float64 `json:"ndvi,omitempty"`         // 0..1
	Population  *int     `json:"population,omitempty"`   // people, >= 0
	RoadKm      *float64 `json:"road_km,omitempty"`      // distance to nearest road
	WaterKm     *float64 `json:"water_km,omitempty"`     // distance to nearest water body

	// ValidDays counts the valid daily climate samples behind MeanTemp and
	// PrecipTotal. Zero means the climate sub-fetch produced nothing.
	ValidDays int `json:"valid_days"`

	// Secondary climate summaries, carried for traceability only.
	MeanHumidity *float64 `json:"mean_humidity,omitempty"` // %
	MeanSolar    *float64 `json:"mean_solar,omitempty"`    // kWh/m²/day
	MeanWind     *float64 `json:"mean_wind,omitempty"`     // m/s

	// Fallbacks names the signals whose values came from a documented
	// fetch-level default rather than an upstream response.
	Fallbacks []string `json:"fallbacks,omitempty"`
}

// PrecipDaily derives the average daily precipitation, or nil when either
// the total or the valid-day count is missing.
func (b Bundle) PrecipDaily() *float64 {
	if b.PrecipTotal == nil || b.ValidDays <= 0 {
		return nil
	}
	v := *b.PrecipTotal / float64(b.ValidDays)
	return &v
}

// Overrides pins individual signals, bypassing the corresponding sub-fetch.
// A nil field leaves the sub-fetch in charge.
type Overrides struct {
	NDVI       *float64 `json:"ndvi,omitempty"`
	Population *int     `json:"population,omitempty"`
	RoadKm     *float64 `json:"road_km,omitempty"`
	WaterKm    *float64 `json:"water_km,omitempty"`
}

// Float returns a pointer to v, for building bundles and overrides inline.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
