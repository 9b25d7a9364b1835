package domain

import (
	"errors"
	"strings"
)

// ErrMissingInput marks a required source (directory or file) that does not
// exist. It is the only error class that aborts a whole run.
var ErrMissingInput = errors.New("missing input")

// UnknownCategory is substituted for blank or unresolved categories.
const UnknownCategory = "Unknown"

// RawRecord is one source row keyed by raw column name. Columns that a file
// does not carry are simply absent.
type RawRecord map[string]string

// Get returns the trimmed value of column, or "" when the column is unset or
// the name is empty.
func (r RawRecord) Get(column string) string {
	if column == "" {
		return ""
	}
	return strings.TrimSpace(r[column])
}

// Dataset is the in-memory collection of every raw record of an export,
// together with the header of the first file read.
type Dataset struct {
	Header  []string
	Records []RawRecord
	Files   []string
}

// Point is a WGS-84 coordinate that passed the bounding-box check.
type Point struct {
	Lat float64
	Lng float64
}

// NormalizedEvent is the per-record view consumed by the aggregators. Pointer
// fields are nil when the underlying column is unresolved or unparseable.
type NormalizedEvent struct {
	Category       string
	Date           *CalendarDate
	Hour           *int
	Weekday        *int
	Neighborhood   string
	Status         string
	ResolutionDays *int
	Point          *Point
}

// Closed reports whether the status marks the request as closed or completed.
func (e NormalizedEvent) Closed() bool {
	s := strings.ToLower(e.Status)
	return strings.Contains(s, "closed") || strings.Contains(s, "complete")
}

// WeatherDay is one day of the external weather series. High and Low are nil
// when the provider has no reading.
type WeatherDay struct {
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Precip float64  `json:"precip"`
}
