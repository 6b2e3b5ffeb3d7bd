package formatters

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// CSVFormatter handles CSV format output
type CSVFormatter struct{}

func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Format writes a header row followed by one record per row, in column order.
func (f *CSVFormatter) Format(t *quality.Table) ([]byte, error) {
	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(t.Columns()))
	for r := 0; r < t.Len(); r++ {
		for c := range record {
			record[c] = formatCell(t.Value(r, c))
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buffer.Bytes(), nil
}

func (f *CSVFormatter) Extension() string { return ".csv" }

func (f *CSVFormatter) MIMEType() string { return "text/csv" }
