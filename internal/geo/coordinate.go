// Package geo holds the coordinate and date-range value types shared by the
// fetch and scoring layers, plus great-circle distance math.
package geo

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Coordinate is a WGS84 point. Validate before handing it to any fetcher;
// invalid coordinates must never reach the cache or an upstream call.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate builds a validated coordinate.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks the latitude and longitude ranges.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return eris.Errorf("geo: latitude must be between -90 and 90 (got %g)", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return eris.Errorf("geo: longitude must be between -180 and 180 (got %g)", c.Lon)
	}
	return nil
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

// DateRange is a closed calendar-date interval. Start <= End is the caller's
// responsibility; an inverted range is passed through to the upstream, whose
// rejection degrades to defaults like any other upstream failure.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// DefaultRangeDays is the lookback window applied when no range is given.
const DefaultRangeDays = 30

// OrDefault returns the range itself when populated, otherwise
// [now-30d, now].
func (r DateRange) OrDefault(now time.Time) DateRange {
	if !r.Start.IsZero() && !r.End.IsZero() {
		return r
	}
	end := now
	return DateRange{Start: end.AddDate(0, 0, -DefaultRangeDays), End: end}
}

// Compact formats both bounds as YYYYMMDD, the convention shared by the
// climate upstream and the cache key builder.
func (r DateRange) Compact() (start, end string) {
	return r.Start.Format("20060102"), r.End.Format("20060102")
}
