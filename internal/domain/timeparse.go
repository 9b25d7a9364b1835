package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxResolutionDays excludes open/close gaps at or above one year from
// resolution statistics.
const DefaultMaxResolutionDays = 365

// timestampLayout is one accepted textual encoding. hasClock is false for
// date-only layouts, which yield a calendar date but no hour.
type timestampLayout struct {
	layout   string
	hasClock bool
}

// timestampLayouts are tried in order; the first that parses wins.
var timestampLayouts = []timestampLayout{
	{"2006-01-02 15:04:05.999999", true},
	{"2006-01-02 15:04:05", true},
	{"1/2/2006 15:04", true},
	{"1/2/2006", false},
	{"2006-01-02", false},
}

// CalendarDate is a day without time-of-day or zone.
type CalendarDate struct {
	Year  int
	Month time.Month
	Day   int
}

// String formats the date as YYYY-MM-DD.
func (d CalendarDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MonthKey formats the date as YYYY-MM.
func (d CalendarDate) MonthKey() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// YearKey formats the year as four digits.
func (d CalendarDate) YearKey() string {
	return fmt.Sprintf("%04d", d.Year)
}

// Weekday numbers the day Monday=0 through Sunday=6.
func (d CalendarDate) Weekday() int {
	return (int(d.midnight().Weekday()) + 6) % 7
}

func (d CalendarDate) midnight() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Timestamp is a parsed source timestamp. Sources carry no zone, so Time is
// always UTC wall-clock.
type Timestamp struct {
	Time     time.Time
	HasClock bool
}

// Date returns the calendar date of the timestamp.
func (t Timestamp) Date() CalendarDate {
	return CalendarDate{Year: t.Time.Year(), Month: t.Time.Month(), Day: t.Time.Day()}
}

// Hour returns the hour of day, or false for date-only timestamps.
func (t Timestamp) Hour() (int, bool) {
	if !t.HasClock {
		return 0, false
	}
	return t.Time.Hour(), true
}

// ParseTimestamp parses s against the accepted layouts. Blank or malformed
// input returns false; it is never an error.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, false
	}
	for _, l := range timestampLayouts {
		t, err := time.Parse(l.layout, s)
		if err == nil {
			return Timestamp{Time: t, HasClock: l.hasClock}, true
		}
	}
	return Timestamp{}, false
}

// ParseDate is ParseTimestamp reduced to its calendar date.
func ParseDate(s string) (CalendarDate, bool) {
	ts, ok := ParseTimestamp(s)
	if !ok {
		return CalendarDate{}, false
	}
	return ts.Date(), true
}

// ResolutionDays returns the whole calendar days between open and close.
// It reports false unless both parse, close is strictly after open, and the
// gap is below maxDays.
func ResolutionDays(open, closed string, maxDays int) (int, bool) {
	o, ok := ParseTimestamp(open)
	if !ok {
		return 0, false
	}
	c, ok := ParseTimestamp(closed)
	if !ok {
		return 0, false
	}
	if !c.Time.After(o.Time) {
		return 0, false
	}
	days := int(c.Date().midnight().Sub(o.Date().midnight()) / (24 * time.Hour))
	if days >= maxDays {
		return 0, false
	}
	return days, true
}
