package importing

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// LoadLocation resolves a caller supplied IANA zone name. The server's own
// "Local" zone is not accepted.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, Invalid("time_zone", "an IANA time zone name is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, Invalid("time_zone", "unknown time zone %q", name)
	}
	return loc, nil
}

// StartOfDay is midnight of d in loc.
func StartOfDay(d civil.Date, loc *time.Location) time.Time {
	return d.In(loc)
}

// InLocation interprets a wall clock time in loc. Times skipped by a
// daylight saving transition are rejected.
func InLocation(dt civil.DateTime, loc *time.Location) (time.Time, error) {
	t := dt.In(loc)
	if civil.DateTimeOf(t) != dt {
		return time.Time{}, fmt.Errorf("InLocation: %s does not exist in %s", dt, loc)
	}
	return t, nil
}
