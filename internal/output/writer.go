// Package output serializes the analytics artifacts as compact JSON and
// writes them whole-file into the output directory.
package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/aggregate"
	"github.com/couchcryptid/civic-data-etl/internal/ordered"
	"github.com/couchcryptid/civic-data-etl/internal/trend"
)

// Artifact file names.
const (
	LatestName = "csb_latest.json"
	TrendsName = "trends.json"
)

// SummaryName returns the year-specific summary file name.
func SummaryName(year int) string {
	return fmt.Sprintf("csb_%d.json", year)
}

// Artifact is one written file.
type Artifact struct {
	Name string
	Path string
	Size int64
	Data []byte
}

// Writer writes artifacts into a single directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer for dir. The directory is created on first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := ordered.Encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteSummary writes csb_<year>.json and a byte-identical csb_latest.json.
func (w *Writer) WriteSummary(s aggregate.Summary) ([]Artifact, error) {
	data, err := Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	year, err := w.write(SummaryName(s.Year), data)
	if err != nil {
		return nil, err
	}
	latest, err := w.write(LatestName, data)
	if err != nil {
		return []Artifact{year}, err
	}
	return []Artifact{year, latest}, nil
}

// WriteTrends writes trends.json.
func (w *Writer) WriteTrends(t trend.Trends) (Artifact, error) {
	data, err := Marshal(t)
	if err != nil {
		return Artifact{}, fmt.Errorf("encode trends: %w", err)
	}
	return w.write(TrendsName, data)
}

// write replaces name in one step so readers never see a partial file.
func (w *Writer) write(name string, data []byte) (Artifact, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create output dir %s: %w", w.dir, err)
	}

	path := filepath.Join(w.dir, name)
	tmp, err := os.CreateTemp(w.dir, "."+name+".*.tmp")
	if err != nil {
		return Artifact{}, fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Artifact{}, fmt.Errorf("rename %s: %w", name, err)
	}
	return Artifact{Name: name, Path: path, Size: int64(len(data)), Data: data}, nil
}

// List returns every JSON file in the output directory sorted by name,
// without loading contents. A missing directory lists as empty.
func (w *Writer) List() ([]Artifact, error) {
	entries, err := os.ReadDir(w.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list output dir: %w", err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, Artifact{Name: e.Name(), Path: filepath.Join(w.dir, e.Name()), Size: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Open reads a named artifact. Names that are not plain JSON file names
// inside the output directory are rejected.
func (w *Writer) Open(name string) ([]byte, error) {
	if name != filepath.Base(name) || !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("invalid artifact name %q: %w", name, os.ErrNotExist)
	}
	return os.ReadFile(filepath.Join(w.dir, name))
}
