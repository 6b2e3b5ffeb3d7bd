package formatters

import (
	"strconv"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCell converts a text cell to the most specific value it represents:
// integer, float, boolean, timestamp, or the string itself. Empty is null.
func ParseCell(value string) any {
	if value == "" {
		return nil
	}
	if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
		return intVal
	}
	if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
		return floatVal
	}
	if boolVal, err := strconv.ParseBool(value); err == nil {
		return boolVal
	}
	if ts, ok := parseTimestamp(value); ok {
		return ts
	}
	return value
}

func parseTimestamp(value string) (time.Time, bool) {
	// cheap reject before trying every layout
	if len(value) < 10 || value[4] != '-' || value[7] != '-' {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// formatCell is the inverse of ParseCell for the text formats.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	}
	return ""
}
