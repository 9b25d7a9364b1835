// Command validate checks written analytics artifacts against the invariants
// the frontend relies on: non-empty categories, heatmap points inside the
// city bounding box and under the cap, key ordering, resolution averages,
// the three-year trend window, and a byte-identical latest copy.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir public/data \
//	  -year 2025
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/output"
	"github.com/couchcryptid/civic-data-etl/internal/trend"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "public/data", "directory containing the written artifacts")
	year := flag.Int("year", 0, "target year of the summary artifact")
	heatmapLimit := flag.Int("heatmap-limit", aggregate.DefaultLimits.HeatmapPoints, "maximum heatmap points")
	flag.Parse()

	if *year == 0 {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*dir, *year, *heatmapLimit))
}

func run(dir string, year, heatmapLimit int) int {
	fmt.Println("=== Civic Data Artifact Validation ===")
	fmt.Println()

	summaryPath := filepath.Join(dir, output.SummaryName(year))
	summaryRaw, err := os.ReadFile(summaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read summary: %v\n", err)
		return 1
	}
	latestRaw, err := os.ReadFile(filepath.Join(dir, output.LatestName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read latest: %v\n", err)
		return 1
	}
	trendsRaw, err := os.ReadFile(filepath.Join(dir, output.TrendsName))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read trends: %v\n", err)
		return 1
	}

	var summary aggregate.Summary
	if err := json.Unmarshal(summaryRaw, &summary); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode summary: %v\n", err)
		return 1
	}
	var trends trend.Trends
	if err := json.Unmarshal(trendsRaw, &trends); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: decode trends: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateCategories(summary),
		validateHistograms(summary),
		validateNeighborhoods(summary),
		validateHeatmap(summary, heatmapLimit),
		validateMonthly(summary),
		validateLatest(summaryRaw, latestRaw),
		validateTrends(trends, year),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Summary: %d requests, %d categories, %d heatmap points, %d neighborhoods\n",
		summary.TotalRequests, len(summary.Categories), len(summary.HeatmapPoints), len(summary.Neighborhoods))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateCategories(s aggregate.Summary) *phase {
	p := &phase{name: "Categories"}
	total := 0
	for i, e := range s.Categories {
		if e.Key == "" {
			p.errorf("empty category name at position %d", i)
		}
		if i > 0 && e.Value > s.Categories[i-1].Value {
			p.errorf("category %q (%d) ranked below a smaller count", e.Key, e.Value)
		}
		total += e.Value
	}
	if total != s.TotalRequests {
		p.errorf("category counts sum to %d, totalRequests is %d", total, s.TotalRequests)
	}
	return p
}

func validateHistograms(s aggregate.Summary) *phase {
	p := &phase{name: "Daily / hourly / weekday histograms"}
	if !sort.StringsAreSorted(s.DailyCounts.Keys()) {
		p.errorf("dailyCounts keys are not in ascending order")
	}
	for _, e := range s.DailyCounts {
		if _, ok := domain.ParseDate(e.Key); !ok {
			p.errorf("dailyCounts key %q is not a date", e.Key)
		}
	}
	checkSlots(p, "hourly", s.Hourly, 23)
	checkSlots(p, "weekday", s.Weekday, 6)
	return p
}

func checkSlots(p *phase, name string, counts aggregate.Counts, maxSlot int) {
	prev := -1
	for _, e := range counts {
		slot, err := strconv.Atoi(e.Key)
		if err != nil || slot < 0 || slot > maxSlot {
			p.errorf("%s key %q is out of range 0-%d", name, e.Key, maxSlot)
			continue
		}
		if slot <= prev {
			p.errorf("%s key %q is not in ascending numeric order", name, e.Key)
		}
		prev = slot
	}
}

func validateNeighborhoods(s aggregate.Summary) *phase {
	p := &phase{name: "Neighborhood rollups"}
	prevTotal := math.MaxInt
	for i, e := range s.Neighborhoods {
		want := fmt.Sprintf("%02d", i+1)
		if e.Key != want {
			p.errorf("neighborhood id %q at position %d, want %q", e.Key, i, want)
		}
		r := e.Value
		if r.Total > prevTotal {
			p.errorf("neighborhood %s (%s) total %d exceeds the previous rank", e.Key, r.Name, r.Total)
		}
		prevTotal = r.Total
		if r.Closed > r.Total {
			p.errorf("neighborhood %s closed %d exceeds total %d", e.Key, r.Closed, r.Total)
		}
		if r.AvgResolutionDays < 0 {
			p.errorf("neighborhood %s has negative avgResolutionDays", e.Key)
		}
		if math.Abs(r.AvgResolutionDays*10-math.Round(r.AvgResolutionDays*10)) > 1e-6 {
			p.errorf("neighborhood %s avgResolutionDays %g is not rounded to one decimal", e.Key, r.AvgResolutionDays)
		}
		if len(r.TopCategories) > aggregate.DefaultLimits.NeighborhoodTopN {
			p.errorf("neighborhood %s lists %d top categories", e.Key, len(r.TopCategories))
		}
	}
	return p
}

func validateHeatmap(s aggregate.Summary, limit int) *phase {
	p := &phase{name: "Heatmap points"}
	if len(s.HeatmapPoints) > limit {
		p.errorf("%d points exceed the cap of %d", len(s.HeatmapPoints), limit)
	}
	for i, pt := range s.HeatmapPoints {
		if !domain.StLouisBounds.Contains(pt.Lat, pt.Lng) {
			p.errorf("point %d (%g, %g) is outside the bounding box", i, pt.Lat, pt.Lng)
		}
		if pt.Category == "" {
			p.errorf("point %d has an empty category", i)
		}
	}
	return p
}

func validateMonthly(s aggregate.Summary) *phase {
	p := &phase{name: "Monthly category rollups"}
	if !sort.StringsAreSorted(s.Monthly.Keys()) {
		p.errorf("monthly keys are not in ascending order")
	}
	for _, e := range s.Monthly {
		if len(e.Value) > aggregate.DefaultLimits.MonthlyCategoriesTop {
			p.errorf("month %s lists %d categories", e.Key, len(e.Value))
		}
	}
	return p
}

func validateLatest(summary, latest []byte) *phase {
	p := &phase{name: "Latest copy"}
	if !bytes.Equal(summary, latest) {
		p.errorf("%s differs from the year summary", output.LatestName)
	}
	return p
}

func validateTrends(t trend.Trends, year int) *phase {
	p := &phase{name: "Trend window"}
	if len(t.YearlyMonthly) > trend.WindowYears {
		p.errorf("%d years exceed the %d-year window", len(t.YearlyMonthly), trend.WindowYears)
	}
	if !sort.StringsAreSorted(t.YearlyMonthly.Keys()) {
		p.errorf("yearlyMonthly keys are not ascending")
	}
	for _, e := range t.YearlyMonthly {
		y, err := strconv.Atoi(e.Key)
		if err != nil || y > year || y <= year-trend.WindowYears {
			p.errorf("year %q is outside the window ending at %d", e.Key, year)
		}
		if !sort.StringsAreSorted(e.Value.Keys()) {
			p.errorf("months of %s are not ascending", e.Key)
		}
	}
	for _, e := range t.YearlyCategories {
		if _, ok := t.YearlyMonthly.Get(e.Key); !ok {
			p.errorf("yearlyCategories has %s but yearlyMonthly does not", e.Key)
		}
	}
	for day := range t.Weather {
		if _, ok := domain.ParseDate(day); !ok {
			p.errorf("weather key %q is not a date", day)
		}
	}
	return p
}
