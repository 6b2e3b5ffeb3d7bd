package formatters

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// ParquetFormatter handles Parquet format output
type ParquetFormatter struct {
	compression string
}

func NewParquetFormatter() *ParquetFormatter {
	return &ParquetFormatter{compression: "snappy"}
}

func NewParquetFormatterWithCompression(compression string) *ParquetFormatter {
	return &ParquetFormatter{compression: compression}
}

func (f *ParquetFormatter) codec() compress.Codec {
	switch f.compression {
	case "zstd":
		return &parquet.Zstd
	case "gzip":
		return &parquet.Gzip
	case "lz4":
		return &parquet.Lz4Raw
	case "none":
		return &parquet.Uncompressed
	default:
		return &parquet.Snappy
	}
}

// Format writes every row of t into a single parquet file. All columns are
// optional leaves; timestamps are stored as UTC microseconds.
func (f *ParquetFormatter) Format(t *quality.Table) ([]byte, error) {
	var buffer bytes.Buffer

	cols := t.Columns()
	schema := buildSchema(cols)
	leafIndex := make([]int, len(cols))
	for i, col := range cols {
		leaf, ok := schema.Lookup(col.Name)
		if !ok {
			return nil, fmt.Errorf("column %s missing from parquet schema", col.Name)
		}
		leafIndex[i] = leaf.ColumnIndex
	}

	writer := parquet.NewWriter(&buffer, schema, parquet.Compression(f.codec()))

	rows := make([]parquet.Row, t.Len())
	for r := range rows {
		row := make(parquet.Row, len(cols))
		for c, col := range cols {
			row[leafIndex[c]] = parquetValue(col.Kind, t.Value(r, c)).Level(0, definitionLevel(t.Value(r, c)), leafIndex[c])
		}
		rows[r] = row
	}

	if _, err := writer.WriteRows(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return buffer.Bytes(), nil
}

func buildSchema(cols []quality.Column) *parquet.Schema {
	fields := make(parquet.Group, len(cols))
	for _, col := range cols {
		var field parquet.Node
		switch col.Kind {
		case quality.KindBoolean:
			field = parquet.Leaf(parquet.BooleanType)
		case quality.KindInteger:
			field = parquet.Leaf(parquet.Int64Type)
		case quality.KindFloat:
			field = parquet.Leaf(parquet.DoubleType)
		case quality.KindTimestamp:
			field = parquet.Timestamp(parquet.Microsecond)
		default:
			field = parquet.String()
		}
		fields[col.Name] = parquet.Optional(field)
	}
	return parquet.NewSchema("dqe_export", fields)
}

func parquetValue(kind quality.Kind, v any) parquet.Value {
	if v == nil {
		return parquet.NullValue()
	}
	if kind == quality.KindTimestamp {
		return parquet.ValueOf(v.(time.Time).UTC().UnixMicro())
	}
	return parquet.ValueOf(v)
}

func definitionLevel(v any) int {
	if v == nil {
		return 0
	}
	return 1
}

func (f *ParquetFormatter) Extension() string { return ".parquet" }

func (f *ParquetFormatter) MIMEType() string { return "application/vnd.apache.parquet" }
