package domain

import "strings"

// Role is a canonical semantic field the pipeline needs, independent of the
// raw column name that supplies it.
type Role string

const (
	RoleDate         Role = "date"
	RoleCategory     Role = "category"
	RoleStatus       Role = "status"
	RoleNeighborhood Role = "neighborhood"
	RoleLatitude     Role = "latitude"
	RoleLongitude    Role = "longitude"
	RoleMercatorX    Role = "mercator_x"
	RoleMercatorY    Role = "mercator_y"
	RoleCloseDate    Role = "close_date"
)

// Coordinate sources reported by FieldMap.CoordinateSource.
const (
	CoordsLatLon = "lat/lon"
	CoordsSRXY   = "SRX/SRY"
	CoordsNone   = "none"
)

// columnPredicate matches a single raw header name.
type columnPredicate func(header string) bool

// columnRule is the ordered predicate chain for one role, most specific first.
type columnRule struct {
	role  Role
	chain []columnPredicate
}

// columnRules resolve the CSB export vintages seen so far. Older exports use
// DATETIMEINIT/PROBLEMCODE/DATETIMECLOSED and projected SRX/SRY coordinates;
// newer ones use descriptive names and WGS-84 pairs.
var columnRules = []columnRule{
	{RoleDate, []columnPredicate{
		equalFold("DATETIMEINIT"),
		containsAll("date", "request"),
		containsAll("date", "init"),
		containsAll("date"),
	}},
	{RoleCategory, []columnPredicate{
		equalFold("PROBLEMCODE"),
		containsAny("problem", "category"),
		containsAny("type"),
	}},
	{RoleStatus, []columnPredicate{containsAny("status")}},
	{RoleNeighborhood, []columnPredicate{containsAny("neighborhood", "nhd")}},
	{RoleLatitude, []columnPredicate{equalFold("latitude", "lat", "y")}},
	{RoleLongitude, []columnPredicate{equalFold("longitude", "lng", "lon", "long", "x")}},
	{RoleMercatorX, []columnPredicate{equalFold("SRX")}},
	{RoleMercatorY, []columnPredicate{equalFold("SRY")}},
	{RoleCloseDate, []columnPredicate{
		equalFold("DATETIMECLOSED"),
		containsAll("close", "date"),
	}},
}

// FieldMap maps each resolved role to its raw column name. It is built once
// per dataset by ResolveColumns and never mutated afterwards.
type FieldMap struct {
	columns map[Role]string
}

// ResolveColumns walks each role's predicate chain in order. The first
// predicate that matches any header (scanned in header order) wins and ends
// the chain; roles with no match stay unresolved.
func ResolveColumns(header []string) FieldMap {
	fm := FieldMap{columns: make(map[Role]string, len(columnRules))}
	for _, rule := range columnRules {
		if col, ok := firstMatch(header, rule.chain); ok {
			fm.columns[rule.role] = col
		}
	}
	return fm
}

func firstMatch(header []string, chain []columnPredicate) (string, bool) {
	for _, match := range chain {
		for _, h := range header {
			if match(h) {
				return h, true
			}
		}
	}
	return "", false
}

// Column returns the raw column resolved for role.
func (m FieldMap) Column(role Role) (string, bool) {
	col, ok := m.columns[role]
	return col, ok
}

// Has reports whether every given role resolved.
func (m FieldMap) Has(roles ...Role) bool {
	for _, r := range roles {
		if _, ok := m.columns[r]; !ok {
			return false
		}
	}
	return true
}

// Value returns the trimmed raw value of role in rec, or "" when the role is
// unresolved.
func (m FieldMap) Value(rec RawRecord, role Role) string {
	return rec.Get(m.columns[role])
}

// CoordinateSource names the coordinate columns the normalizer will prefer.
func (m FieldMap) CoordinateSource() string {
	switch {
	case m.Has(RoleLatitude, RoleLongitude):
		return CoordsLatLon
	case m.Has(RoleMercatorX, RoleMercatorY):
		return CoordsSRXY
	default:
		return CoordsNone
	}
}

// LogAttrs flattens the map into slog key/value pairs for the column
// diagnostic line.
func (m FieldMap) LogAttrs() []any {
	return []any{
		"date", m.columns[RoleDate],
		"category", m.columns[RoleCategory],
		"status", m.columns[RoleStatus],
		"neighborhood", m.columns[RoleNeighborhood],
		"close_date", m.columns[RoleCloseDate],
		"coords", m.CoordinateSource(),
	}
}

func equalFold(names ...string) columnPredicate {
	return func(h string) bool {
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return true
			}
		}
		return false
	}
}

func containsAll(parts ...string) columnPredicate {
	return func(h string) bool {
		lower := strings.ToLower(h)
		for _, p := range parts {
			if !strings.Contains(lower, p) {
				return false
			}
		}
		return true
	}
}

func containsAny(parts ...string) columnPredicate {
	return func(h string) bool {
		lower := strings.ToLower(h)
		for _, p := range parts {
			if strings.Contains(lower, p) {
				return true
			}
		}
		return false
	}
}
