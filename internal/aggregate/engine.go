// Package aggregate builds the single-year service-request summary from
// normalized events in one streaming pass.
package aggregate

import (
	"sort"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/ordered"
)

// Limits bounds the size of the finalized summary.
type Limits struct {
	HeatmapPoints        int
	NeighborhoodTopN     int
	MonthlyCategoriesTop int
}

// DefaultLimits are the frontend's expected truncation sizes.
var DefaultLimits = Limits{
	HeatmapPoints:        50000,
	NeighborhoodTopN:     5,
	MonthlyCategoriesTop: 10,
}

// Summary is the year-specific analytics artifact.
type Summary struct {
	Year          int                 `json:"year"`
	TotalRequests int                 `json:"totalRequests"`
	Categories    Counts              `json:"categories"`
	Neighborhoods Neighborhoods       `json:"neighborhoods"`
	DailyCounts   Counts              `json:"dailyCounts"`
	Hourly        Counts              `json:"hourly"`
	Weekday       Counts              `json:"weekday"`
	HeatmapPoints []HeatmapPoint      `json:"heatmapPoints"`
	Monthly       ordered.Map[Counts] `json:"monthly"`
}

// Stats reports pass-level counters that are not part of the artifact.
type Stats struct {
	Observed        int
	HeatmapRetained int
	HeatmapDropped  int
	Neighborhoods   int
}

// Engine owns every accumulator for the duration of one pass. It is not safe
// for concurrent use.
type Engine struct {
	year          int
	limits        Limits
	categories    *Counter
	daily         *Counter
	hourly        *slotCounter
	weekday       *slotCounter
	monthly       map[string]*Counter
	neighborhoods *neighborhoodSet
	heatmap       *heatmapSample
	observed      int
}

// NewEngine creates an Engine for the target year. Zero limits fall back to
// DefaultLimits.
func NewEngine(year int, limits Limits) *Engine {
	if limits.HeatmapPoints <= 0 {
		limits.HeatmapPoints = DefaultLimits.HeatmapPoints
	}
	if limits.NeighborhoodTopN <= 0 {
		limits.NeighborhoodTopN = DefaultLimits.NeighborhoodTopN
	}
	if limits.MonthlyCategoriesTop <= 0 {
		limits.MonthlyCategoriesTop = DefaultLimits.MonthlyCategoriesTop
	}
	return &Engine{
		year:          year,
		limits:        limits,
		categories:    NewCounter(),
		daily:         NewCounter(),
		hourly:        newSlotCounter(24),
		weekday:       newSlotCounter(7),
		monthly:       make(map[string]*Counter),
		neighborhoods: newNeighborhoodSet(limits.NeighborhoodTopN),
		heatmap:       newHeatmapSample(limits.HeatmapPoints),
	}
}

// Observe updates every accumulator the event can support. Missing fields
// only skip the statistics that need them.
func (e *Engine) Observe(ev domain.NormalizedEvent) {
	e.observed++
	category := ev.Category
	if category == "" {
		category = domain.UnknownCategory
		ev.Category = category
	}
	e.categories.Add(category)

	if ev.Date != nil {
		e.daily.Add(ev.Date.String())
		month := ev.Date.MonthKey()
		mc, ok := e.monthly[month]
		if !ok {
			mc = NewCounter()
			e.monthly[month] = mc
		}
		mc.Add(category)
	}
	if ev.Hour != nil {
		e.hourly.add(*ev.Hour)
	}
	if ev.Weekday != nil {
		e.weekday.add(*ev.Weekday)
	}

	e.neighborhoods.observe(ev)
	e.heatmap.observe(ev)
}

// Finalize produces the immutable summary. The engine must not be observed
// afterwards.
func (e *Engine) Finalize() (Summary, Stats) {
	months := make([]string, 0, len(e.monthly))
	for m := range e.monthly {
		months = append(months, m)
	}
	sort.Strings(months)

	monthly := make(ordered.Map[Counts], len(months))
	for i, m := range months {
		monthly[i] = ordered.Entry[Counts]{Key: m, Value: e.monthly[m].MostCommon(e.limits.MonthlyCategoriesTop)}
	}

	neighborhoods := e.neighborhoods.finalize()
	points := e.heatmap.finalize()

	summary := Summary{
		Year:          e.year,
		TotalRequests: e.categories.Total(),
		Categories:    e.categories.MostCommon(0),
		Neighborhoods: neighborhoods,
		DailyCounts:   e.daily.ByKey(),
		Hourly:        e.hourly.finalize(),
		Weekday:       e.weekday.finalize(),
		HeatmapPoints: points,
		Monthly:       monthly,
	}
	stats := Stats{
		Observed:        e.observed,
		HeatmapRetained: len(points),
		HeatmapDropped:  e.heatmap.dropped,
		Neighborhoods:   len(neighborhoods),
	}
	return summary, stats
}
