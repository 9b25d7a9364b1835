// Package trend builds the multi-year monthly and category series shown next
// to the single-year summary, merged with a daily weather series.
package trend

import (
	"sort"
	"strconv"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/ordered"
)

// WindowYears is the number of calendar years covered, ending at the target.
const WindowYears = 3

// Trends is the multi-year artifact.
type Trends struct {
	YearlyMonthly    ordered.Map[aggregate.Counts] `json:"yearlyMonthly"`
	YearlyCategories ordered.Map[aggregate.Counts] `json:"yearlyCategories"`
	Weather          map[string]domain.WeatherDay  `json:"weather"`
}

// Stats reports how many records landed inside and outside the window.
type Stats struct {
	InWindow  int
	Undated   int
	OutWindow int
}

type yearly struct {
	monthly    *aggregate.Counter
	categories *aggregate.Counter
}

// Composer accumulates per-year counts for records whose open date falls in
// the window {year-2, year-1, year}.
type Composer struct {
	normalizer *domain.Normalizer
	year       int
	years      map[int]*yearly
	stats      Stats
}

// NewComposer creates a Composer for the window ending at year.
func NewComposer(normalizer *domain.Normalizer, year int) *Composer {
	return &Composer{
		normalizer: normalizer,
		year:       year,
		years:      make(map[int]*yearly, WindowYears),
	}
}

// InWindow reports whether y is one of the window years.
func (c *Composer) InWindow(y int) bool {
	return y <= c.year && y > c.year-WindowYears
}

// Observe counts rec when its open date parses and falls in the window.
func (c *Composer) Observe(rec domain.RawRecord) {
	d, ok := c.normalizer.Date(rec)
	if !ok {
		c.stats.Undated++
		return
	}
	if !c.InWindow(d.Year) {
		c.stats.OutWindow++
		return
	}
	c.stats.InWindow++

	y, ok := c.years[d.Year]
	if !ok {
		y = &yearly{monthly: aggregate.NewCounter(), categories: aggregate.NewCounter()}
		c.years[d.Year] = y
	}
	y.monthly.Add(d.MonthKey())
	y.categories.Add(c.normalizer.Category(rec))
}

// Finalize emits years in ascending order, months ascending within a year and
// categories by descending count. A nil weather map encodes as {}.
func (c *Composer) Finalize(weather map[string]domain.WeatherDay) (Trends, Stats) {
	keys := make([]int, 0, len(c.years))
	for y := range c.years {
		keys = append(keys, y)
	}
	sort.Ints(keys)

	out := Trends{
		YearlyMonthly:    make(ordered.Map[aggregate.Counts], 0, len(keys)),
		YearlyCategories: make(ordered.Map[aggregate.Counts], 0, len(keys)),
		Weather:          weather,
	}
	if out.Weather == nil {
		out.Weather = map[string]domain.WeatherDay{}
	}
	for _, y := range keys {
		key := strconv.Itoa(y)
		out.YearlyMonthly = append(out.YearlyMonthly, ordered.Entry[aggregate.Counts]{Key: key, Value: c.years[y].monthly.ByKey()})
		out.YearlyCategories = append(out.YearlyCategories, ordered.Entry[aggregate.Counts]{Key: key, Value: c.years[y].categories.MostCommon(0)})
	}
	return out, c.stats
}
