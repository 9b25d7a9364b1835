package domain

import (
	"strconv"
	"strings"
)

// Point rejection reasons, used as metric labels.
const (
	RejectNoCoordinates = "no_coordinates"
	RejectUnparseable   = "unparseable"
	RejectZeroProjected = "zero_projected"
	RejectOutOfBounds   = "out_of_bounds"
)

// Normalizer derives NormalizedEvents from raw records using a resolved
// FieldMap. It holds no per-record state.
type Normalizer struct {
	fields            FieldMap
	bounds            Bounds
	maxResolutionDays int
}

// NewNormalizer creates a Normalizer. A non-positive maxResolutionDays falls
// back to DefaultMaxResolutionDays.
func NewNormalizer(fields FieldMap, bounds Bounds, maxResolutionDays int) *Normalizer {
	if maxResolutionDays <= 0 {
		maxResolutionDays = DefaultMaxResolutionDays
	}
	return &Normalizer{fields: fields, bounds: bounds, maxResolutionDays: maxResolutionDays}
}

// Fields returns the FieldMap the normalizer was built with.
func (n *Normalizer) Fields() FieldMap {
	return n.fields
}

// Category returns the record's category, or UnknownCategory when blank.
func (n *Normalizer) Category(rec RawRecord) string {
	if c := n.fields.Value(rec, RoleCategory); c != "" {
		return c
	}
	return UnknownCategory
}

// Date parses the record's open date.
func (n *Normalizer) Date(rec RawRecord) (CalendarDate, bool) {
	return ParseDate(n.fields.Value(rec, RoleDate))
}

// Normalize builds the full per-record view. The returned rejection reason is
// empty when a point was kept.
func (n *Normalizer) Normalize(rec RawRecord) (NormalizedEvent, string) {
	ev := NormalizedEvent{
		Category:     n.Category(rec),
		Neighborhood: n.fields.Value(rec, RoleNeighborhood),
		Status:       n.fields.Value(rec, RoleStatus),
	}

	opened := n.fields.Value(rec, RoleDate)
	if ts, ok := ParseTimestamp(opened); ok {
		d := ts.Date()
		wd := d.Weekday()
		ev.Date = &d
		ev.Weekday = &wd
		if h, ok := ts.Hour(); ok {
			ev.Hour = &h
		}
	}

	if n.fields.Has(RoleDate, RoleCloseDate) {
		if days, ok := ResolutionDays(opened, n.fields.Value(rec, RoleCloseDate), n.maxResolutionDays); ok {
			ev.ResolutionDays = &days
		}
	}

	p, reason := n.point(rec)
	if reason == "" {
		ev.Point = &p
	}
	return ev, reason
}

// point prefers the WGS-84 pair and falls back to projected SRX/SRY when the
// pair is unresolved or unparseable. Projected zeros are treated as missing.
func (n *Normalizer) point(rec RawRecord) (Point, string) {
	reason := RejectNoCoordinates
	if n.fields.Has(RoleLatitude, RoleLongitude) {
		lat, errLat := parseCoordinate(n.fields.Value(rec, RoleLatitude))
		lng, errLng := parseCoordinate(n.fields.Value(rec, RoleLongitude))
		if errLat == nil && errLng == nil {
			return n.bounded(lat, lng)
		}
		reason = RejectUnparseable
	}

	if n.fields.Has(RoleMercatorX, RoleMercatorY) {
		x, errX := parseCoordinate(n.fields.Value(rec, RoleMercatorX))
		y, errY := parseCoordinate(n.fields.Value(rec, RoleMercatorY))
		if errX != nil || errY != nil {
			return Point{}, RejectUnparseable
		}
		if x == 0 || y == 0 {
			return Point{}, RejectZeroProjected
		}
		lng, lat := WebMercatorToLngLat(x, y)
		return n.bounded(lat, lng)
	}
	return Point{}, reason
}

func (n *Normalizer) bounded(lat, lng float64) (Point, string) {
	if !n.bounds.Contains(lat, lng) {
		return Point{}, RejectOutOfBounds
	}
	return Point{Lat: lat, Lng: lng}, ""
}

func parseCoordinate(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FilterYear returns the records whose open date falls in year. Records
// without a parseable open date are dropped.
func (n *Normalizer) FilterYear(records []RawRecord, year int) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		if d, ok := n.Date(rec); ok && d.Year == year {
			out = append(out, rec)
		}
	}
	return out
}
