// Command genmock writes a deterministic synthetic service-request export for
// local runs and demos. One CSV file is written per year, in either the legacy
// column vintage (DATETIMEINIT, PROBLEMCODE, SRX/SRY) or the descriptive one
// (Date Requested, Request Type, Latitude/Longitude).
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/raw/csb \
//	  -years 2023,2024,2025 \
//	  -rows 5000 \
//	  -vintage legacy
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
)

const (
	vintageLegacy      = "legacy"
	vintageDescriptive = "descriptive"
)

var categories = []string{
	"Pothole",
	"Trash & Debris",
	"Graffiti",
	"Street Light Out",
	"Abandoned Vehicle",
	"Bulk Pickup",
	"Tree Trimming",
	"Sidewalk Repair",
	"Illegal Dumping",
	"Noise Complaint",
	"Rodent Baiting",
	"Water Main Break",
}

var neighborhoods = []string{
	"Downtown",
	"Soulard",
	"Tower Grove South",
	"Dutchtown",
	"Benton Park",
	"Carondelet",
	"The Hill",
	"Central West End",
}

var statuses = []string{"Closed", "Open", "In Progress", "Completed"}

// column layouts per vintage.
var headers = map[string][]string{
	vintageLegacy:      {"REQUESTID", "DATETIMEINIT", "PROBLEMCODE", "NEIGHBORHOOD", "STATUS", "DATETIMECLOSED", "SRX", "SRY"},
	vintageDescriptive: {"Request ID", "Date Requested", "Request Type", "Neighborhood", "Status", "Date Closed", "Latitude", "Longitude"},
}

var timeLayouts = map[string]string{
	vintageLegacy:      "2006-01-02 15:04:05.000",
	vintageDescriptive: "1/2/2006 15:04",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/raw/csb", "directory to write csb_<year>.csv files into")
	yearList := flag.String("years", "2023,2024,2025", "comma-separated years to generate")
	rows := flag.Int("rows", 5000, "rows per year")
	vintage := flag.String("vintage", vintageLegacy, "column vintage: legacy or descriptive")
	seed := flag.Int64("seed", 311, "random seed")
	flag.Parse()

	if _, ok := headers[*vintage]; !ok {
		flag.Usage()
		return fmt.Errorf("unknown vintage %q", *vintage)
	}
	if *rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", *rows)
	}
	years, err := parseYears(*yearList)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	counts := make(map[string]int)
	nextID := 1
	for _, year := range years {
		path := filepath.Join(*out, fmt.Sprintf("csb_%d.csv", year))
		if err := writeYear(path, rng, *vintage, year, *rows, &nextID, counts); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		log.Printf("%d: %d rows -> %s", year, *rows, path)
	}

	printStats(counts)
	return nil
}

func parseYears(s string) ([]int, error) {
	var years []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		y, err := strconv.Atoi(part)
		if err != nil || y < 1900 {
			return nil, fmt.Errorf("invalid year %q", part)
		}
		years = append(years, y)
	}
	if len(years) == 0 {
		return nil, fmt.Errorf("no years given")
	}
	sort.Ints(years)
	return years, nil
}

func writeYear(path string, rng *rand.Rand, vintage string, year, rows int, nextID *int, counts map[string]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers[vintage]); err != nil {
		return err
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	minutes := int(start.AddDate(1, 0, 0).Sub(start) / time.Minute)
	for i := 0; i < rows; i++ {
		rec := synthesize(rng, vintage, start.Add(time.Duration(rng.Intn(minutes))*time.Minute))
		rec[0] = strconv.Itoa(*nextID)
		*nextID++
		counts[rec[2]]++
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// synthesize builds one row. A small share of rows carry the defects real
// exports have: blank categories, missing or zero coordinates, points outside
// the city, and unparseable dates.
func synthesize(rng *rand.Rand, vintage string, opened time.Time) []string {
	layout := timeLayouts[vintage]

	category := categories[rng.Intn(len(categories))]
	if rng.Intn(50) == 0 {
		category = ""
	}
	status := statuses[rng.Intn(len(statuses))]

	openedText := opened.Format(layout)
	if rng.Intn(200) == 0 {
		openedText = "N/A"
	}

	closedText := ""
	if status == "Closed" || status == "Completed" {
		closed := opened.Add(time.Duration(1+rng.Intn(30*24)) * time.Hour)
		closedText = closed.Format(layout)
	}

	lat := domain.StLouisBounds.MinLat + 0.5 + rng.Float64()*0.2
	lng := domain.StLouisBounds.MinLng + 0.7 + rng.Float64()*0.2
	if rng.Intn(100) == 0 {
		lng = -95.5
	}

	var a, b string
	switch {
	case rng.Intn(40) == 0:
		if vintage == vintageLegacy {
			a, b = "0", "0"
		}
	case vintage == vintageLegacy:
		x, y := lngLatToWebMercator(lng, lat)
		a, b = strconv.FormatFloat(x, 'f', 2, 64), strconv.FormatFloat(y, 'f', 2, 64)
	default:
		a, b = strconv.FormatFloat(lat, 'f', 6, 64), strconv.FormatFloat(lng, 'f', 6, 64)
	}

	return []string{
		"",
		openedText,
		category,
		neighborhoods[rng.Intn(len(neighborhoods))],
		status,
		closedText,
		a,
		b,
	}
}

func lngLatToWebMercator(lng, lat float64) (x, y float64) {
	const halfExtent = 20037508.34
	x = lng * halfExtent / 180
	y = math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	y = y * halfExtent / 180
	return x, y
}

func printStats(counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Println("\nRows by category:")
	for _, k := range keys {
		label := k
		if label == "" {
			label = "(blank)"
		}
		fmt.Printf("  %-20s %d\n", label, counts[k])
	}
}
