package source

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReader(dir string) (*Reader, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return NewReader(dir, slog.New(slog.NewTextHandler(io.Discard, nil)), m), m
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestParse_StripsBOM(t *testing.T) {
	in := "\ufeffDATETIMEINIT,PROBLEMCODE,NEIGHBORHOOD\n2025-01-15,Pothole,Downtown\n"

	header, records, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"DATETIMEINIT", "PROBLEMCODE", "NEIGHBORHOOD"}, header)
	require.Len(t, records, 1)
	assert.Equal(t, "Pothole", records[0].Get("PROBLEMCODE"))
	assert.Equal(t, "2025-01-15", records[0].Get("DATETIMEINIT"))
}

func TestParse_InvalidUTF8Replaced(t *testing.T) {
	in := []byte("DATETIMEINIT,PROBLEMCODE\n2025-01-15,Pot\xffhole\n")

	_, records, err := Parse(strings.NewReader(string(in)))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Pot\ufffdhole", records[0].Get("PROBLEMCODE"))
}

func TestParse_TabDelimited(t *testing.T) {
	in := "DATETIMEINIT\tPROBLEMCODE\tNEIGHBORHOOD\n" +
		"2025-01-15\tPothole\tDowntown\n" +
		"2025-01-16\tTrash\tSoulard\n" +
		"2025-01-17\tGraffiti\tDutchtown\n"

	header, records, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"DATETIMEINIT", "PROBLEMCODE", "NEIGHBORHOOD"}, header)
	require.Len(t, records, 3)
	assert.Equal(t, "Soulard", records[1].Get("NEIGHBORHOOD"))
}

func TestParse_ShortRowsLackTrailingColumns(t *testing.T) {
	in := "DATETIMEINIT,PROBLEMCODE,NEIGHBORHOOD\n2025-01-15,Pothole\n2025-01-16,Trash,Soulard,extra\n"

	_, records, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	_, ok := records[0]["NEIGHBORHOOD"]
	assert.False(t, ok)
	assert.Equal(t, "Soulard", records[1].Get("NEIGHBORHOOD"))
	assert.Len(t, records[1], 3)
}

func TestParse_Empty(t *testing.T) {
	header, records, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, records)
}

func TestParse_BOMOnly(t *testing.T) {
	header, records, err := Parse(strings.NewReader("\xEF\xBB\xBF\r\n"))
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Nil(t, records)
}

func TestReader_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "csb")
	r, _ := testReader(dir)

	_, err := r.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingInput)
	assert.Contains(t, err.Error(), dir)
}

func TestReader_NoCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.txt"), []byte("nothing here"))
	r, _ := testReader(dir)

	_, err := r.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingInput)
	assert.Contains(t, err.Error(), "no csv files")
}

func TestReader_RecursiveSortedDiscovery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "2025", "b.csv"), []byte("DATETIMEINIT,PROBLEMCODE\n2025-02-01,Trash\n"))
	writeFile(t, filepath.Join(dir, "2024", "a.CSV"), []byte("DATETIMEINIT,PROBLEMCODE,SRX,SRY\n2024-02-01,Pothole,1,2\n2024-02-02,Pothole,1,2\n"))
	writeFile(t, filepath.Join(dir, "notes.md"), []byte("# notes"))
	r, m := testReader(dir)

	paths, err := r.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "2024", "a.CSV"),
		filepath.Join(dir, "2025", "b.csv"),
	}, paths)

	ds, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DATETIMEINIT", "PROBLEMCODE", "SRX", "SRY"}, ds.Header)
	require.Len(t, ds.Records, 3)
	assert.Equal(t, "Pothole", ds.Records[0].Get("PROBLEMCODE"))
	assert.Equal(t, "Trash", ds.Records[2].Get("PROBLEMCODE"))
	assert.InDelta(t, 3, testutil.ToFloat64(m.RowsRead), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FilesRead), 0)
}

func TestReader_SkipsBinaryAndEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	writeFile(t, filepath.Join(dir, "a_image.csv"), png)
	writeFile(t, filepath.Join(dir, "b_bom_only.csv"), []byte("\xEF\xBB\xBF"))
	writeFile(t, filepath.Join(dir, "b_empty.csv"), []byte("  \n"))
	writeFile(t, filepath.Join(dir, "c_data.csv"), []byte("DATETIMEINIT,PROBLEMCODE\n2025-02-01,Trash\n"))
	r, m := testReader(dir)

	ds, err := r.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"DATETIMEINIT", "PROBLEMCODE"}, ds.Header)
	assert.Len(t, ds.Records, 1)
	assert.Equal(t, []string{filepath.Join(dir, "c_data.csv")}, ds.Files)
	assert.InDelta(t, 1, testutil.ToFloat64(m.FilesSkipped.WithLabelValues(SkipBinary)), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.FilesSkipped.WithLabelValues(SkipEmpty)), 0)
}

func TestReader_AllFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.csv"), nil)
	r, _ := testReader(dir)

	_, err := r.Load(context.Background())
	require.ErrorIs(t, err, domain.ErrMissingInput)
	assert.Contains(t, err.Error(), "no readable csv files")
}

func TestReader_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.csv"), []byte("DATETIMEINIT\n2025-01-01\n"))
	r, _ := testReader(dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
