// Package domain models Citizens' Service Bureau (CSB) 311 service requests.
//
// # Data Source
//
// Requests come from the city's open-data CSB export, a zip of one CSV per
// year. Exports are produced by different systems over time, so the schema is
// not fixed: column names, date encodings and coordinate systems all vary by
// vintage. Nothing outside this package reads a raw column name directly;
// every access goes through a [FieldMap] built by [ResolveColumns].
//
// # Column Vintages
//
// Legacy exports:
//
//	DATETIMEINIT, PROBLEMCODE, STATUS, NEIGHBORHOOD, DATETIMECLOSED, SRX, SRY
//
// Newer exports use descriptive headers such as "Date Requested",
// "Request Type", "Neighborhood Name", "Latitude"/"Longitude". Each role is
// resolved through an ordered chain of predicates, exact canonical name first,
// then progressively looser substring matches.
//
// # Date Encodings
//
//	2025-01-15 08:00:00.000   legacy, fractional seconds
//	2025-01-15 08:00:00
//	01/15/2025 08:00          US date and time
//	01/15/2025                US date only
//	2025-01-15                ISO date only
//
// Date-only values yield a calendar date and weekday but no hour, so they are
// left out of the hourly histogram rather than counted at midnight. Weekdays
// are numbered Monday=0 through Sunday=6. Unparseable values are absent, never
// errors.
//
// # Coordinates
//
// Legacy rows carry Web Mercator (EPSG:3857) metres in SRX/SRY, with 0/0 for
// ungeocoded requests. Newer rows carry WGS-84 latitude/longitude. Projected
// values are converted with the spherical inverse Mercator formula
// ([WebMercatorToLngLat]) and every point must fall inside [StLouisBounds].
//
// # Resolution Time
//
// Resolution days are whole calendar days between the open and close dates,
// counted only when the close timestamp is strictly later than the open one
// and the gap is under a year.
package domain
