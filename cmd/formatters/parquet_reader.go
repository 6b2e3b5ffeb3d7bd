package formatters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// ParquetReader reads a parquet file. Parquet needs random access, so the
// whole stream is buffered in memory first.
type ParquetReader struct {
	r io.Reader
}

func NewParquetReader(r io.Reader) *ParquetReader {
	return &ParquetReader{r: r}
}

type parquetColumn struct {
	column quality.Column
	decode func(parquet.Value) any
}

// ReadTable reads all row groups into a table typed from the file schema.
func (r *ParquetReader) ReadTable() (*quality.Table, error) {
	data, err := io.ReadAll(r.r)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	schema := file.Schema()
	paths := schema.Columns()
	columns := make([]parquetColumn, len(paths))
	defs := make([]quality.Column, len(paths))
	for i, path := range paths {
		leaf, _ := schema.Lookup(path...)
		columns[i] = leafColumn(strings.Join(path, "."), leaf.Node)
		defs[i] = columns[i].column
	}

	table, err := quality.NewTable(defs...)
	if err != nil {
		return nil, err
	}

	values := make([]any, len(columns))
	batch := make([]parquet.Row, 1000)
	for _, rowGroup := range file.RowGroups() {
		rows := rowGroup.Rows()
		for {
			n, err := rows.ReadRows(batch)
			for _, row := range batch[:n] {
				for i := range values {
					values[i] = nil
				}
				for _, val := range row {
					c := val.Column()
					if c < 0 || c >= len(columns) || val.IsNull() {
						continue
					}
					values[c] = columns[c].decode(val)
				}
				if err := table.Append(values...); err != nil {
					rows.Close()
					return nil, err
				}
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", err)
			}
			if n == 0 {
				break
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close parquet rows: %w", err)
		}
	}
	return table, nil
}

func leafColumn(name string, node parquet.Node) parquetColumn {
	col := quality.Column{Name: name, Nullable: true}
	typ := node.Type()

	if lt := typ.LogicalType(); lt != nil {
		switch {
		case lt.Timestamp != nil:
			unit := time.Microsecond
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				unit = time.Millisecond
			case lt.Timestamp.Unit.Nanos != nil:
				unit = time.Nanosecond
			}
			col.Kind = quality.KindTimestamp
			return parquetColumn{column: col, decode: func(v parquet.Value) any {
				return time.Unix(0, v.Int64()*int64(unit)).UTC()
			}}
		case lt.Date != nil:
			col.Kind = quality.KindTimestamp
			return parquetColumn{column: col, decode: func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}}
		}
	}

	switch typ.Kind() {
	case parquet.Boolean:
		col.Kind = quality.KindBoolean
		return parquetColumn{column: col, decode: func(v parquet.Value) any { return v.Boolean() }}
	case parquet.Int32:
		col.Kind = quality.KindInteger
		return parquetColumn{column: col, decode: func(v parquet.Value) any { return int64(v.Int32()) }}
	case parquet.Int64:
		col.Kind = quality.KindInteger
		return parquetColumn{column: col, decode: func(v parquet.Value) any { return v.Int64() }}
	case parquet.Float:
		col.Kind = quality.KindFloat
		return parquetColumn{column: col, decode: func(v parquet.Value) any { return float64(v.Float()) }}
	case parquet.Double:
		col.Kind = quality.KindFloat
		return parquetColumn{column: col, decode: func(v parquet.Value) any { return v.Double() }}
	}
	col.Kind = quality.KindText
	return parquetColumn{column: col, decode: func(v parquet.Value) any { return string(v.ByteArray()) }}
}
