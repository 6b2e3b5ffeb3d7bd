package formatters

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var ErrJSONLNotObject = errors.New("JSONL line is not an object")

// JSONLReader reads JSON Lines. Column order follows first appearance of
// each key; nested values are kept as their JSON text.
type JSONLReader struct {
	scanner *bufio.Scanner
}

// NewJSONLReader creates a reader accepting lines up to 16 MiB.
func NewJSONLReader(r io.Reader) *JSONLReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &JSONLReader{scanner: scanner}
}

// ReadTable reads every line into a nullable table.
func (r *JSONLReader) ReadTable() (*quality.Table, error) {
	var (
		order   []string
		seen    = map[string]bool{}
		records []map[string]any
		line    int
	)

	for r.scanner.Scan() {
		line++
		data := bytes.TrimSpace(r.scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		record, keys, err := decodeObject(data)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				order = append(order, k)
			}
		}
		records = append(records, record)
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}

	return quality.InferTable(order, records)
}

func decodeObject(data []byte) (map[string]any, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrJSONLNotObject
	}

	record := map[string]any{}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("failed to parse value of %s: %w", key, err)
		}
		value, err := jsonValue(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse value of %s: %w", key, err)
		}
		if _, dup := record[key]; !dup {
			keys = append(keys, key)
		}
		record[key] = value
	}
	return record, keys, nil
}

func jsonValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case string:
		if ts, ok := parseTimestamp(val); ok {
			return ts, nil
		}
		return val, nil
	case map[string]any, []any:
		return string(bytes.TrimSpace(raw)), nil
	}
	return v, nil
}
