// Package source loads a service-request export from disk into a
// domain.Dataset.
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/civic-data-etl/internal/domain"
	"github.com/couchcryptid/civic-data-etl/internal/observability"
	"github.com/h2non/filetype"
	"github.com/jfyne/csvd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Skip reasons, used as metric labels.
const (
	SkipBinary     = "binary"
	SkipEmpty      = "empty"
	SkipUnreadable = "unreadable"
)

// Reader discovers and parses every CSV file under a directory tree.
type Reader struct {
	dir     string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReader creates a Reader rooted at dir.
func NewReader(dir string, logger *slog.Logger, metrics *observability.Metrics) *Reader {
	return &Reader{dir: dir, logger: logger, metrics: metrics}
}

// Discover returns every *.csv path under the root in lexical order. A
// missing root or an empty result wraps domain.ErrMissingInput.
func (r *Reader) Discover() ([]string, error) {
	info, err := os.Stat(r.dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: service request directory %s not found", domain.ErrMissingInput, r.dir)
	}

	var paths []string
	err = filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(d.Name()), ".csv") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", r.dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no csv files under %s", domain.ErrMissingInput, r.dir)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load reads every discovered file. The dataset header is the header of the
// first readable file; each file's rows are keyed by that file's own header.
// Files that are binary, empty, or unparseable are skipped with a warning.
func (r *Reader) Load(ctx context.Context) (domain.Dataset, error) {
	paths, err := r.Discover()
	if err != nil {
		return domain.Dataset{}, err
	}

	var ds domain.Dataset
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return domain.Dataset{}, err
		}

		header, records, reason, err := r.readFile(path)
		if reason != "" {
			r.logger.Warn("skipping source file", "path", path, "reason", reason, "error", err)
			r.metrics.FilesSkipped.WithLabelValues(reason).Inc()
			continue
		}
		if ds.Header == nil {
			ds.Header = header
		}
		ds.Records = append(ds.Records, records...)
		ds.Files = append(ds.Files, path)

		r.metrics.FilesRead.Inc()
		r.metrics.RowsRead.Add(float64(len(records)))
		r.logger.Info("read source file", "path", path, "rows", len(records), "columns", len(header))
	}

	if len(ds.Files) == 0 {
		return domain.Dataset{}, fmt.Errorf("%w: no readable csv files under %s", domain.ErrMissingInput, r.dir)
	}
	return ds, nil
}

// readFile returns a non-empty skip reason when the file cannot contribute.
func (r *Reader) readFile(path string) ([]string, []domain.RawRecord, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, SkipUnreadable, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, SkipEmpty, nil
	}
	if kind, _ := filetype.Match(data); kind != filetype.Unknown {
		return nil, nil, SkipBinary, fmt.Errorf("detected %s content", kind.Extension)
	}

	header, records, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, SkipUnreadable, err
	}
	if header == nil {
		return nil, nil, SkipEmpty, nil
	}
	return header, records, "", nil
}

// Parse decodes a delimited text stream. A UTF-8 byte order mark is removed,
// invalid byte sequences become U+FFFD, and the delimiter is sniffed from the
// content. Rows shorter than the header simply lack the trailing columns.
func Parse(in io.Reader) ([]string, []domain.RawRecord, error) {
	decoded, err := io.ReadAll(transform.NewReader(in, transform.Chain(unicode.BOMOverride(unicode.UTF8.NewDecoder()), norm.NFC)))
	if err != nil {
		return nil, nil, fmt.Errorf("decode: %w", err)
	}
	// csvd cannot sniff a stream without rows.
	if len(bytes.TrimSpace(decoded)) == 0 {
		return nil, nil, nil
	}

	cr := csvd.NewReader(bytes.NewReader(decoded))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []domain.RawRecord
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				return nil, nil, fmt.Errorf("parse line %d: %w", perr.Line, err)
			}
			return nil, nil, err
		}
		records = append(records, toRecord(header, row))
	}
	return header, records, nil
}

func toRecord(header, row []string) domain.RawRecord {
	rec := make(domain.RawRecord, len(header))
	for i, name := range header {
		if i >= len(row) || name == "" {
			continue
		}
		rec[name] = row[i]
	}
	return rec
}
