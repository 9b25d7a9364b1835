package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/ordered"
)

// HeatmapPoint encodes as the frontend's [lat, lng, category] tuple.
type HeatmapPoint struct {
	Lat      float64
	Lng      float64
	Category string
}

// MarshalJSON writes the point as a three-element array.
func (p HeatmapPoint) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := ordered.Encode(&buf, []any{p.Lat, p.Lng, p.Category}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a [lat, lng, category] tuple.
func (p *HeatmapPoint) UnmarshalJSON(data []byte) error {
	var tuple []json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	if len(tuple) != 3 {
		return fmt.Errorf("heatmap point: expected 3 elements, got %d", len(tuple))
	}
	if err := json.Unmarshal(tuple[0], &p.Lat); err != nil {
		return fmt.Errorf("heatmap point lat: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &p.Lng); err != nil {
		return fmt.Errorf("heatmap point lng: %w", err)
	}
	if err := json.Unmarshal(tuple[2], &p.Category); err != nil {
		return fmt.Errorf("heatmap point category: %w", err)
	}
	return nil
}

// heatmapSample keeps the first limit qualifying points in encounter order.
// Points past the cap are counted but not stored.
type heatmapSample struct {
	points  []HeatmapPoint
	limit   int
	dropped int
}

func newHeatmapSample(limit int) *heatmapSample {
	return &heatmapSample{points: []HeatmapPoint{}, limit: limit}
}

func (h *heatmapSample) observe(ev domain.NormalizedEvent) {
	if ev.Point == nil {
		return
	}
	if len(h.points) >= h.limit {
		h.dropped++
		return
	}
	h.points = append(h.points, HeatmapPoint{Lat: ev.Point.Lat, Lng: ev.Point.Lng, Category: ev.Category})
}

func (h *heatmapSample) finalize() []HeatmapPoint {
	out := make([]HeatmapPoint, len(h.points))
	copy(out, h.points)
	return out
}
