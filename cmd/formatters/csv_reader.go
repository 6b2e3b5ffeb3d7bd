package formatters

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// CSVReader reads CSV with a header row. Cell types are sniffed per value
// and column kinds inferred across the file. A column that falls back to
// text keeps the cells exactly as written.
type CSVReader struct {
	reader *csv.Reader
}

// NewCSVReader creates a reader that tolerates ragged records.
func NewCSVReader(r io.Reader) *CSVReader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	return &CSVReader{reader: reader}
}

// ReadTable reads every record into a nullable table. Empty cells are null.
func (r *CSVReader) ReadTable() (*quality.Table, error) {
	headers, err := r.reader.Read()
	if errors.Is(err, io.EOF) {
		return quality.NewTable()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := r.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		records = append(records, record)
	}

	cols := make([]quality.Column, len(headers))
	parsed := make([][]any, len(headers))
	for c, name := range headers {
		values := make([]any, len(records))
		for i, record := range records {
			values[i] = ParseCell(cell(record, c))
		}
		cols[c] = quality.InferColumn(name, values)
		if cols[c].Kind == quality.KindText {
			for i, record := range records {
				if raw := cell(record, c); raw != "" {
					values[i] = raw
				}
			}
		}
		parsed[c] = values
	}

	table, err := quality.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	row := make([]any, len(headers))
	for i := range records {
		for c := range headers {
			row[c] = parsed[c][i]
		}
		if err := table.Append(row...); err != nil {
			return nil, fmt.Errorf("CSV record %d: %w", i+1, err)
		}
	}
	return table, nil
}

// cell returns field c of a record, or "" when the record is short. Extra
// fields beyond the header are ignored.
func cell(record []string, c int) string {
	if c < len(record) {
		return record[c]
	}
	return ""
}
