package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() aggregate.Summary {
	e := aggregate.NewEngine(2025, aggregate.DefaultLimits)
	d := domain.CalendarDate{Year: 2025, Month: 1, Day: 15}
	e.Observe(domain.NormalizedEvent{
		Category:     "Trash & Debris <bulk>",
		Date:         &d,
		Neighborhood: "Downtown",
		Point:        &domain.Point{Lat: 38.6, Lng: -90.2},
	})
	s, _ := e.Finalize()
	return s
}

func TestWriter_WriteSummaryWritesLatestCopy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	w := NewWriter(dir)

	arts, err := w.WriteSummary(sampleSummary())
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "csb_2025.json", arts[0].Name)
	assert.Equal(t, LatestName, arts[1].Name)

	year, err := os.ReadFile(filepath.Join(dir, "csb_2025.json"))
	require.NoError(t, err)
	latest, err := os.ReadFile(filepath.Join(dir, LatestName))
	require.NoError(t, err)
	assert.Equal(t, year, latest)
	assert.Equal(t, int64(len(year)), arts[0].Size)
}

func TestWriter_CompactWithoutHTMLEscaping(t *testing.T) {
	w := NewWriter(t.TempDir())

	arts, err := w.WriteSummary(sampleSummary())
	require.NoError(t, err)

	body := string(arts[0].Data)
	assert.Contains(t, body, `"Trash & Debris <bulk>"`)
	assert.NotContains(t, body, `\u0026`)
	assert.NotContains(t, body, `\u003c`)
	assert.NotContains(t, body, "\n")
	assert.NotContains(t, body, ": ")
	assert.Contains(t, body, `"heatmapPoints":[[38.6,-90.2,"Trash & Debris <bulk>"]]`)
}

func TestWriter_KeyOrder(t *testing.T) {
	data, err := Marshal(sampleSummary())
	require.NoError(t, err)

	assert.Regexp(t, `^\{"year":2025,"totalRequests":1,"categories":\{.*\},"neighborhoods":\{"01":\{"name":"Downtown","total":1,"closed":0,"avgResolutionDays":0,"topCategories":\{.*\}\}\},"dailyCounts":\{"2025-01-15":1\},"hourly":\{\},"weekday":\{\},"heatmapPoints":\[.*\],"monthly":\{"2025-01":\{.*\}\}\}$`, string(data))
}

func TestWriter_RewriteIsByteIdentical(t *testing.T) {
	w := NewWriter(t.TempDir())

	first, err := w.WriteSummary(sampleSummary())
	require.NoError(t, err)
	second, err := w.WriteSummary(sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, first[0].Data, second[0].Data)
}

func TestWriter_WriteTrends(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	art, err := w.WriteTrends(trend.Trends{})
	require.NoError(t, err)
	assert.Equal(t, TrendsName, art.Name)

	got, err := os.ReadFile(filepath.Join(dir, TrendsName))
	require.NoError(t, err)
	assert.Equal(t, `{"yearlyMonthly":{},"yearlyCategories":{},"weather":null}`, string(got))
}

func TestWriter_ListSkipsTempAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	_, err := w.WriteSummary(sampleSummary())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".csb_latest.json.123.tmp"), []byte("x"), 0o644))

	list, err := w.List()
	require.NoError(t, err)
	names := make([]string, len(list))
	for i, a := range list {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"csb_2025.json", "csb_latest.json"}, names)
	assert.Positive(t, list[0].Size)
}

func TestWriter_ListMissingDir(t *testing.T) {
	list, err := NewWriter(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWriter_OpenRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	_, err := w.WriteTrends(trend.Trends{})
	require.NoError(t, err)

	data, err := w.Open(TrendsName)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	for _, name := range []string{"../trends.json", "sub/trends.json", "notes.txt", ".hidden.json"} {
		_, err := w.Open(name)
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
}
