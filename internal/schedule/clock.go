package schedule

import (
	"fmt"
	"time"
)

// Clock anchors all wall-clock schedule arithmetic to the clinic's fixed
// timezone. It is passed explicitly instead of living in a package-level
// location so tests can run against synthetic zones.
type Clock struct {
	loc *time.Location
}

// NewClock loads the given IANA zone identifier.
func NewClock(timezone string) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule: load timezone %q: %w", timezone, err)
	}
	return &Clock{loc: loc}, nil
}

// NewClockIn wraps an already-loaded location, mainly for tests.
func NewClockIn(loc *time.Location) *Clock {
	return &Clock{loc: loc}
}

// Location returns the clinic zone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// DayOf buckets an instant into its local calendar day, returned as the
// local-midnight instant. General instants do not round-trip through this;
// it is only a day-granularity conversion.
func (c *Clock) DayOf(t time.Time) time.Time {
	local := t.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
}

// LocalDate reinterprets the calendar date carried by t, read in t's own
// zone, as the clinic-local midnight of that date. Date-valued columns scan
// as UTC midnight; DayOf would shift those onto the previous local day in
// zones west of UTC, while this keeps the written calendar date.
func (c *Clock) LocalDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// Weekday returns the local day-of-week of an instant, 0=Sunday..6=Saturday.
func (c *Clock) Weekday(t time.Time) int {
	return int(t.In(c.loc).Weekday())
}

// At combines a local day (any instant within it) with an "HH:MM"
// time-of-day into an absolute instant.
func (c *Clock) At(day time.Time, timeOfDay string) (time.Time, error) {
	hour, minute, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	local := day.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, c.loc), nil
}

// NextDay returns local midnight of the day after the given day. Uses
// calendar arithmetic so DST transitions keep the result at midnight.
func (c *Clock) NextDay(day time.Time) time.Time {
	local := day.In(c.loc)
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, c.loc)
}
