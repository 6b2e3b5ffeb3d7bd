package providers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/DanyaHDanny/tafordqe/cmd/compressors"
	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

const hiveDefaultPartition = "__HIVE_DEFAULT_PARTITION__"

// opener opens one data file by its slash-separated path relative to the dataset root.
type opener func(ctx context.Context, rel string) (io.ReadCloser, error)

// readDataset decodes every file of a partitioned dataset and unions them.
func readDataset(ctx context.Context, logger *slog.Logger, root string, files []string, open opener, loc Locator) (*quality.Table, error) {
	if len(files) == 0 {
		logger.Warn("no data files found", "path", root, "pattern", loc.Pattern)
		return quality.NewTable()
	}

	tables := make([]*quality.Table, 0, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := readOne(ctx, open, rel, loc)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", strings.TrimSuffix(root, "/"), rel, err)
		}
		logger.Debug("read data file", "file", rel, "rows", t.Len())
		tables = append(tables, t)
	}

	merged, err := quality.Concat(tables...)
	if err != nil {
		return nil, fmt.Errorf("failed to combine files under %s: %w", root, err)
	}
	return project(merged, loc.Columns)
}

func readOne(ctx context.Context, open opener, rel string, loc Locator) (*quality.Table, error) {
	body, err := open(ctx, rel)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	t, err := decodeFile(path.Base(rel), body, loc.Format)
	if err != nil {
		return nil, err
	}
	if !loc.PartitionColumns {
		return t, nil
	}
	return withPartitions(t, path.Dir(rel))
}

// decodeFile picks the codec and format from the file name unless the
// format is forced.
func decodeFile(name string, r io.Reader, format string) (*quality.Table, error) {
	compression, base := compressors.DetectCompression(name)
	if format == "" {
		detected, ok := formatters.DetectFormat(base)
		if !ok {
			return nil, fmt.Errorf("%w: %s", formatters.ErrUnsupportedFormat, name)
		}
		format = detected
	}

	c, err := compressors.GetCompressor(compression)
	if err != nil {
		return nil, err
	}
	rc, err := c.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader, err := formatters.NewReader(format, rc)
	if err != nil {
		return nil, err
	}
	return reader.ReadTable()
}

// matches reports whether rel belongs to the dataset. Hidden files and
// marker files such as _SUCCESS are skipped.
func matches(loc Locator, rel string) bool {
	base := path.Base(rel)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "_") {
		return false
	}
	if loc.Pattern != "" {
		ok, err := doublestar.Match(loc.Pattern, rel)
		if err != nil || !ok {
			return false
		}
	}
	_, stripped := compressors.DetectCompression(base)
	format, ok := formatters.DetectFormat(stripped)
	if loc.Format != "" {
		return !ok || format == loc.Format
	}
	return ok
}

type partition struct {
	key   string
	value any
}

// parsePartitions extracts hive key=value segments from a relative directory.
func parsePartitions(dir string) []partition {
	var parts []partition
	for _, seg := range strings.Split(dir, "/") {
		key, raw, ok := strings.Cut(seg, "=")
		if !ok || key == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
		var value any
		if raw != hiveDefaultPartition {
			value = formatters.ParseCell(raw)
		}
		parts = append(parts, partition{key: key, value: value})
	}
	return parts
}

// withPartitions appends partition columns that the file itself lacks.
func withPartitions(t *quality.Table, dir string) (*quality.Table, error) {
	var extra []partition
	for _, p := range parsePartitions(dir) {
		if _, _, exists := t.Column(p.key); !exists {
			extra = append(extra, p)
		}
	}
	if len(extra) == 0 {
		return t, nil
	}

	cols := t.Columns()
	for _, p := range extra {
		cols = append(cols, quality.InferColumn(p.key, []any{p.value}))
	}
	out, err := quality.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	for r := 0; r < t.Len(); r++ {
		row := t.Row(r)
		for _, p := range extra {
			row = append(row, p.value)
		}
		if err := out.Append(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}
