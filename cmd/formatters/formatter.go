// Package formatters reads and writes tables in the file formats exports are
// stored in.
package formatters

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// Format type constants
const (
	FormatParquet = "parquet"
	FormatCSV     = "csv"
	FormatJSONL   = "jsonl"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Formatter serializes a whole table into one file payload
type Formatter interface {
	Format(t *quality.Table) ([]byte, error)

	// Extension returns the file extension for this format (e.g., ".jsonl", ".csv", ".parquet")
	Extension() string

	// MIMEType returns the MIME type for this format
	MIMEType() string
}

// TableReader materializes a table from a stream.
type TableReader interface {
	ReadTable() (*quality.Table, error)
}

// GetFormatter returns the formatter for format. The compression argument
// selects the internal codec for parquet and is ignored by the text formats.
func GetFormatter(format, compression string) (Formatter, error) {
	switch format {
	case FormatJSONL:
		return NewJSONLFormatter(), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	case FormatParquet:
		return NewParquetFormatterWithCompression(compression), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// UsesInternalCompression returns true if the format handles compression internally
func UsesInternalCompression(format string) bool {
	return format == FormatParquet
}

// NewReader returns the reader for format over r.
func NewReader(format string, r io.Reader) (TableReader, error) {
	switch format {
	case FormatJSONL:
		return NewJSONLReader(r), nil
	case FormatCSV:
		return NewCSVReader(r), nil
	case FormatParquet:
		return NewParquetReader(r), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// DetectFormat maps a file name (without compression suffix) to a format.
func DetectFormat(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".parquet", ".pq":
		return FormatParquet, true
	case ".csv":
		return FormatCSV, true
	case ".jsonl", ".ndjson":
		return FormatJSONL, true
	}
	return "", false
}

// IsSupported reports whether format names a readable format.
func IsSupported(format string) bool {
	return format == FormatParquet || format == FormatCSV || format == FormatJSONL
}
