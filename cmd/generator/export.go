package generator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/compressors"
	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var (
	ErrPartitionColumnKind = errors.New("partition column must be a timestamp")
	ErrInvalidGranularity  = errors.New("invalid partition granularity")
)

type ExportOptions struct {
	Format      string
	Compression string
	// Level of zero uses the compressor's default.
	Level           int
	PathTemplate    string
	PartitionColumn string
	Granularity     string
}

// Export writes t under dir and returns the files written, sorted. With a
// partition column the rows are split per period of that column into
// template directories and the column itself is dropped from the files.
func Export(dir, name string, t *quality.Table, opts ExportOptions) ([]string, error) {
	if opts.Format == "" {
		opts.Format = formatters.FormatParquet
	}
	if !validGranularity(opts.Granularity) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGranularity, opts.Granularity)
	}
	w, err := newWriter(opts)
	if err != nil {
		return nil, err
	}

	if opts.PartitionColumn == "" {
		path := filepath.Join(dir, name, name+w.extension())
		if err := w.write(path, t); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	parts, err := splitByPeriod(t, opts.PartitionColumn, opts.Granularity)
	if err != nil {
		return nil, err
	}
	tmpl := NewPathTemplate(opts.PathTemplate)
	var written []string
	for _, p := range parts {
		sub := filepath.Join(dir, filepath.FromSlash(tmpl.Generate(name, opts.PartitionColumn, p.start)))
		path := filepath.Join(sub, GenerateFilename(name, p.start, opts.Granularity, w.formatter.Extension(), w.compressionExt()))
		if err := w.write(path, p.table); err != nil {
			return nil, err
		}
		written = append(written, path)
	}
	sort.Strings(written)
	return written, nil
}

type writer struct {
	format     string
	formatter  formatters.Formatter
	compressor compressors.Compressor
	level      int
}

func newWriter(opts ExportOptions) (*writer, error) {
	formatter, err := formatters.GetFormatter(opts.Format, opts.Compression)
	if err != nil {
		return nil, err
	}
	compression := opts.Compression
	if formatters.UsesInternalCompression(opts.Format) {
		compression = "none"
	}
	compressor, err := compressors.GetCompressor(compression)
	if err != nil {
		return nil, err
	}
	level := opts.Level
	if level == 0 {
		level = compressor.DefaultLevel()
	}
	return &writer{format: opts.Format, formatter: formatter, compressor: compressor, level: level}, nil
}

func (w *writer) compressionExt() string { return w.compressor.Extension() }

func (w *writer) extension() string { return w.formatter.Extension() + w.compressionExt() }

func (w *writer) write(path string, t *quality.Table) error {
	data, err := w.formatter.Format(t)
	if err != nil {
		return fmt.Errorf("failed to format %s: %w", path, err)
	}
	if data, err = w.compressor.Compress(data, w.level); err != nil {
		return fmt.Errorf("failed to compress %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

type partition struct {
	start time.Time
	table *quality.Table
}

// splitByPeriod groups rows by the period of column, dropping the column.
// Rows with a null partition value are rejected.
func splitByPeriod(t *quality.Table, column, granularity string) ([]partition, error) {
	col, pos, ok := t.Column(column)
	if !ok {
		return nil, &quality.UnknownColumnError{Columns: []string{column}, Available: t.ColumnNames()}
	}
	if col.Kind != quality.KindTimestamp {
		return nil, fmt.Errorf("%w: %s is %s", ErrPartitionColumnKind, column, col.Kind)
	}

	var keep []quality.Column
	for i, c := range t.Columns() {
		if i != pos {
			keep = append(keep, c)
		}
	}

	byPeriod := map[time.Time]*quality.Table{}
	var starts []time.Time
	for i := 0; i < t.Len(); i++ {
		ts, ok := t.Value(i, pos).(time.Time)
		if !ok {
			return nil, fmt.Errorf("row %d: %w: %s", i, quality.ErrNullValue, column)
		}
		start := PeriodStart(ts, granularity)
		part := byPeriod[start]
		if part == nil {
			var err error
			if part, err = quality.NewTable(keep...); err != nil {
				return nil, err
			}
			byPeriod[start] = part
			starts = append(starts, start)
		}
		row := t.Row(i)
		values := append(row[:pos:pos], row[pos+1:]...)
		if err := part.Append(values...); err != nil {
			return nil, err
		}
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })

	out := make([]partition, len(starts))
	for i, s := range starts {
		out[i] = partition{start: s, table: byPeriod[s]}
	}
	return out, nil
}
