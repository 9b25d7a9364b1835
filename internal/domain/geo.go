package domain

import "math"

// webMercatorHalfExtent is half the EPSG:3857 world width in metres.
const webMercatorHalfExtent = 20037508.34

// Bounds is an exclusive latitude/longitude box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// StLouisBounds rejects coordinates that are corrupt or were projected with
// the wrong reference system.
var StLouisBounds = Bounds{MinLat: 38.0, MaxLat: 39.0, MinLng: -91.0, MaxLng: -89.0}

// Contains reports whether lat/lng lies strictly inside the box.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat > b.MinLat && lat < b.MaxLat && lng > b.MinLng && lng < b.MaxLng
}

// WebMercatorToLngLat converts EPSG:3857 metres to WGS-84 degrees using the
// spherical inverse Mercator formula.
func WebMercatorToLngLat(x, y float64) (lng, lat float64) {
	lng = x * 180.0 / webMercatorHalfExtent
	lat = math.Atan(math.Exp(y*math.Pi/webMercatorHalfExtent))*360.0/math.Pi - 90.0
	return lng, lat
}
