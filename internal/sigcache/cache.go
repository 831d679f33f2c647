// Package sigcache memoizes upstream signal fetches. Each signal kind is
// cached in its own key namespace so a failure in one source never
// invalidates cached success in another.
package sigcache

import (
	"fmt"
	"time"

	"github.com/terraplan/siteplan/internal/geo"
)

// Cache is the backend contract. Values are opaque JSON bytes so the memory
// and sqlite backends stay interchangeable. Implementations must be safe for
// concurrent use; lost-update races on the same key are acceptable (last
// writer wins, values for a key are derived identically).
type Cache interface {
	// Get returns the cached value and true, or nil and false on a miss or
	// after TTL expiry. Expiry is lazy; there is no background sweep.
	Get(key string) ([]byte, bool)
	// Set stores val under key for ttl.
	Set(key string, val []byte, ttl time.Duration)
}

// Key builds a deterministic cache key from the signal kind, the coordinate
// rounded to 4 decimal places (~11 m), the date range, and the parameter set.
// Requests differing only in insignificant coordinate precision share a key.
func Key(kind string, coord geo.Coordinate, dr geo.DateRange, params string) string {
	start, end := dr.Compact()
	return fmt.Sprintf("%s|%s|%s|%s|%s", kind, coord.String(), start, end, params)
}
