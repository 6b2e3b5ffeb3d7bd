package formatters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// JSONLFormatter handles JSONL (JSON Lines) format output
type JSONLFormatter struct{}

func NewJSONLFormatter() *JSONLFormatter {
	return &JSONLFormatter{}
}

// Format writes one JSON object per row. Keys keep the table's column order.
func (f *JSONLFormatter) Format(t *quality.Table) ([]byte, error) {
	var buffer bytes.Buffer

	names := t.ColumnNames()
	keys := make([][]byte, len(names))
	for i, name := range names {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	for r := 0; r < t.Len(); r++ {
		buffer.WriteByte('{')
		for c, key := range keys {
			if c > 0 {
				buffer.WriteByte(',')
			}
			buffer.Write(key)
			buffer.WriteByte(':')
			value, err := json.Marshal(t.Value(r, c))
			if err != nil {
				return nil, fmt.Errorf("failed to encode column %s: %w", names[c], err)
			}
			buffer.Write(value)
		}
		buffer.WriteString("}\n")
	}
	return buffer.Bytes(), nil
}

func (f *JSONLFormatter) Extension() string { return ".jsonl" }

func (f *JSONLFormatter) MIMEType() string { return "application/x-ndjson" }
