package timezone

import (
	"fmt"
	"time"
)

// Converter translates between the league's fixed local timezone and UTC.
// All wall-clock scheduling (availability patterns, quiet hours) is
// interpreted against this one zone.
type Converter interface {
	LocalToUTC(local time.Time) time.Time
	UTCToLocal(utc time.Time) time.Time
	CurrentLocalTime() time.Time
}

// LeagueClock is the process-wide Converter backed by a tzdata location.
// Conversions go through the location per instant, so daylight-saving
// transitions are resolved correctly for each individual timestamp.
type LeagueClock struct {
	loc *time.Location
	now func() time.Time
}

func NewLeagueClock(name string) (*LeagueClock, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("loading league timezone %q: %w", name, err)
	}
	return &LeagueClock{loc: loc, now: time.Now}, nil
}

// NewLeagueClockAt returns a clock with a fixed notion of "now". Used in tests.
func NewLeagueClockAt(name string, now time.Time) (*LeagueClock, error) {
	c, err := NewLeagueClock(name)
	if err != nil {
		return nil, err
	}
	c.now = func() time.Time { return now }
	return c, nil
}

// LocalToUTC reinterprets the wall-clock fields of local in the league
// timezone and returns the resulting instant in UTC.
func (c *LeagueClock) LocalToUTC(local time.Time) time.Time {
	return time.Date(local.Year(), local.Month(), local.Day(),
		local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), c.loc).UTC()
}

func (c *LeagueClock) UTCToLocal(utc time.Time) time.Time {
	return utc.In(c.loc)
}

func (c *LeagueClock) CurrentLocalTime() time.Time {
	return c.now().In(c.loc)
}

// Now returns the current instant in UTC.
func (c *LeagueClock) Now() time.Time {
	return c.now().UTC()
}

// At combines a league-local calendar date with a wall-clock offset in
// minutes since midnight and returns the instant in UTC.
func (c *LeagueClock) At(date time.Time, minutes int) time.Time {
	local := c.UTCToLocal(date)
	return time.Date(local.Year(), local.Month(), local.Day(),
		minutes/60, minutes%60, 0, 0, c.loc).UTC()
}

// WeekStart returns Monday 00:00 league time of the week containing ref,
// as a UTC instant. The league week runs Monday through Sunday.
func (c *LeagueClock) WeekStart(ref time.Time) time.Time {
	local := c.UTCToLocal(ref)
	daysSinceMonday := (int(local.Weekday()) + 6) % 7
	monday := local.AddDate(0, 0, -daysSinceMonday)
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, c.loc).UTC()
}

// LocalMinutes returns the wall-clock offset of t in league time, in
// minutes since midnight.
func (c *LeagueClock) LocalMinutes(t time.Time) int {
	local := c.UTCToLocal(t)
	return local.Hour()*60 + local.Minute()
}

// Location exposes the underlying tzdata location for cron scheduling.
func (c *LeagueClock) Location() *time.Location {
	return c.loc
}
