package aggregate_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testHeader = []string{"date", "category", "neighborhood", "status", "close_date", "latitude", "longitude"}

func runEngine(t *testing.T, limits aggregate.Limits, records ...domain.RawRecord) (aggregate.Summary, aggregate.Stats) {
	t.Helper()
	n := domain.NewNormalizer(domain.ResolveColumns(testHeader), domain.StLouisBounds, domain.DefaultMaxResolutionDays)
	e := aggregate.NewEngine(2025, limits)
	for _, rec := range records {
		ev, _ := n.Normalize(rec)
		e.Observe(ev)
	}
	return e.Finalize()
}

func TestEngine_PotholeScenario(t *testing.T) {
	summary, stats := runEngine(t, aggregate.DefaultLimits,
		domain.RawRecord{"date": "01/15/2025 08:00", "category": "Pothole", "neighborhood": "Downtown", "status": "Closed", "close_date": "01/20/2025"},
		domain.RawRecord{"date": "01/16/2025 09:00", "category": "Pothole", "neighborhood": "Downtown", "status": "Open"},
	)

	assert.Equal(t, 2, stats.Observed)
	assert.Equal(t, 2, summary.TotalRequests)
	assert.Equal(t, aggregate.Counts{{Key: "Pothole", Value: 2}}, summary.Categories)

	hood, ok := summary.Neighborhoods.Get("01")
	require.True(t, ok)
	want := aggregate.NeighborhoodRollup{
		Name:              "Downtown",
		Total:             2,
		Closed:            1,
		AvgResolutionDays: 5.0,
		TopCategories:     aggregate.Counts{{Key: "Pothole", Value: 2}},
	}
	if diff := cmp.Diff(want, hood); diff != "" {
		t.Fatalf("neighborhood mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, aggregate.Counts{{Key: "2025-01-15", Value: 1}, {Key: "2025-01-16", Value: 1}}, summary.DailyCounts)
	assert.Equal(t, aggregate.Counts{{Key: "8", Value: 1}, {Key: "9", Value: 1}}, summary.Hourly)
	assert.Equal(t, aggregate.Counts{{Key: "2", Value: 1}, {Key: "3", Value: 1}}, summary.Weekday)
}

func TestEngine_InvalidDateStillCountsCategory(t *testing.T) {
	summary, _ := runEngine(t, aggregate.DefaultLimits,
		domain.RawRecord{"date": "13/45/2025", "category": "Graffiti"},
	)

	assert.Equal(t, aggregate.Counts{{Key: "Graffiti", Value: 1}}, summary.Categories)
	assert.Empty(t, summary.DailyCounts)
	assert.Empty(t, summary.Hourly)
	assert.Empty(t, summary.Weekday)
	assert.Empty(t, summary.Monthly)
}

func TestEngine_BlankCategoryIsUnknown(t *testing.T) {
	summary, _ := runEngine(t, aggregate.DefaultLimits,
		domain.RawRecord{"date": "2025-02-01", "category": ""},
		domain.RawRecord{"date": "2025-02-01"},
	)

	assert.Equal(t, aggregate.Counts{{Key: domain.UnknownCategory, Value: 2}}, summary.Categories)

	e := aggregate.NewEngine(2025, aggregate.DefaultLimits)
	e.Observe(domain.NormalizedEvent{})
	s, _ := e.Finalize()
	assert.Equal(t, aggregate.Counts{{Key: domain.UnknownCategory, Value: 1}}, s.Categories)
}

func TestEngine_NeighborhoodRanking(t *testing.T) {
	var records []domain.RawRecord
	add := func(hood string, n int) {
		for i := 0; i < n; i++ {
			records = append(records, domain.RawRecord{"date": "2025-03-01", "category": "Trash", "neighborhood": hood})
		}
	}
	add("Soulard", 2)
	add("Tower Grove", 3)
	add("Benton Park", 2)
	add("Dutchtown", 5)
	records = append(records, domain.RawRecord{"date": "2025-03-01", "category": "Trash", "neighborhood": "   "})

	summary, _ := runEngine(t, aggregate.DefaultLimits, records...)

	require.Equal(t, []string{"01", "02", "03", "04"}, summary.Neighborhoods.Keys())
	names := make([]string, 0, len(summary.Neighborhoods))
	for _, e := range summary.Neighborhoods {
		names = append(names, e.Value.Name)
	}
	assert.Equal(t, []string{"Dutchtown", "Tower Grove", "Soulard", "Benton Park"}, names)

	for i := 1; i < len(summary.Neighborhoods); i++ {
		assert.GreaterOrEqual(t, summary.Neighborhoods[i-1].Value.Total, summary.Neighborhoods[i].Value.Total)
	}
}

func TestEngine_AvgResolutionDaysZeroWithoutSamples(t *testing.T) {
	summary, _ := runEngine(t, aggregate.DefaultLimits,
		domain.RawRecord{"date": "2025-03-01", "category": "Trash", "neighborhood": "Carondelet", "status": "Closed"},
		domain.RawRecord{"date": "2025-03-05", "category": "Trash", "neighborhood": "Carondelet", "close_date": "2025-03-01"},
	)

	hood, ok := summary.Neighborhoods.Get("01")
	require.True(t, ok)
	assert.Equal(t, 1, hood.Closed)
	assert.Equal(t, 0.0, hood.AvgResolutionDays)

	data, err := json.Marshal(hood)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"avgResolutionDays":0`)
}

func TestEngine_AvgResolutionDaysRounded(t *testing.T) {
	summary, _ := runEngine(t, aggregate.DefaultLimits,
		domain.RawRecord{"date": "2025-03-01", "neighborhood": "Hyde Park", "close_date": "2025-03-02"},
		domain.RawRecord{"date": "2025-03-01", "neighborhood": "Hyde Park", "close_date": "2025-03-03"},
		domain.RawRecord{"date": "2025-03-01", "neighborhood": "Hyde Park", "close_date": "2025-03-03"},
	)

	hood, ok := summary.Neighborhoods.Get("01")
	require.True(t, ok)
	assert.InDelta(t, 1.7, hood.AvgResolutionDays, 1e-9)
}

func TestEngine_TopCategoriesTruncated(t *testing.T) {
	var records []domain.RawRecord
	for i, cat := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		for j := 0; j <= i%3; j++ {
			records = append(records, domain.RawRecord{"date": "2025-04-01", "category": cat, "neighborhood": "Midtown"})
		}
	}
	summary, _ := runEngine(t, aggregate.DefaultLimits, records...)

	hood, ok := summary.Neighborhoods.Get("01")
	require.True(t, ok)
	// Counts: A1 B2 C3 D1 E2 F3 G1; ties keep first-seen order.
	assert.Equal(t, []string{"C", "F", "B", "E", "A"}, hood.TopCategories.Keys())
}

func TestEngine_MonthlyTopTen(t *testing.T) {
	var records []domain.RawRecord
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			records = append(records, domain.RawRecord{"date": "2025-05-10", "category": fmt.Sprintf("cat-%02d", i)})
		}
	}
	records = append(records, domain.RawRecord{"date": "2025-01-10", "category": "Early"})

	summary, _ := runEngine(t, aggregate.DefaultLimits, records...)

	require.Equal(t, []string{"2025-01", "2025-05"}, summary.Monthly.Keys())
	may, ok := summary.Monthly.Get("2025-05")
	require.True(t, ok)
	assert.Len(t, may, 10)
	assert.Equal(t, "cat-11", may[0].Key)
	assert.Equal(t, 12, may[0].Value)
	assert.Equal(t, "cat-02", may[9].Key)
}

func TestEngine_HeatmapCapKeepsFirstPoints(t *testing.T) {
	limits := aggregate.DefaultLimits
	limits.HeatmapPoints = 3

	var records []domain.RawRecord
	for i := 0; i < 5; i++ {
		records = append(records, domain.RawRecord{
			"category":  fmt.Sprintf("c%d", i),
			"latitude":  fmt.Sprintf("38.6%d", i),
			"longitude": "-90.2",
		})
	}
	records = append(records, domain.RawRecord{"category": "far", "latitude": "40.7", "longitude": "-74.0"})

	summary, stats := runEngine(t, limits, records...)

	require.Len(t, summary.HeatmapPoints, 3)
	assert.Equal(t, "c0", summary.HeatmapPoints[0].Category)
	assert.Equal(t, "c2", summary.HeatmapPoints[2].Category)
	assert.Equal(t, 2, stats.HeatmapDropped)
	for _, p := range summary.HeatmapPoints {
		assert.True(t, domain.StLouisBounds.Contains(p.Lat, p.Lng))
	}
}

func TestEngine_EmptyPassEncodesEmptyCollections(t *testing.T) {
	e := aggregate.NewEngine(2025, aggregate.Limits{})
	summary, _ := e.Finalize()

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.JSONEq(t, `{"year":2025,"totalRequests":0,"categories":{},"neighborhoods":{},"dailyCounts":{},"hourly":{},"weekday":{},"heatmapPoints":[],"monthly":{}}`, string(data))
}

func TestHeatmapPoint_JSONTuple(t *testing.T) {
	p := aggregate.HeatmapPoint{Lat: 38.62, Lng: -90.19, Category: "Trash"}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `[38.62,-90.19,"Trash"]`, string(data))

	var back aggregate.HeatmapPoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &back))
}
