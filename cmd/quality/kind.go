package quality

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Kind is the declared type of a column.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindBoolean
	KindTimestamp
)

var kindNames = map[Kind]string{
	KindText:      "text",
	KindInteger:   "integer",
	KindFloat:     "float",
	KindBoolean:   "boolean",
	KindTimestamp: "timestamp",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the kind names plus a few common aliases.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "string":
		return KindText, nil
	case "integer", "int":
		return KindInteger, nil
	case "float", "double":
		return KindFloat, nil
	case "boolean", "bool":
		return KindBoolean, nil
	case "timestamp", "datetime", "date":
		return KindTimestamp, nil
	}
	return KindText, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts anything ParseKind does.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) numeric() bool {
	return k == KindInteger || k == KindFloat
}

// KindOf reports the kind a Go value naturally maps to.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInteger, true
	case float32, float64:
		return KindFloat, true
	case string, []byte:
		return KindText, true
	case bool:
		return KindBoolean, true
	case time.Time:
		return KindTimestamp, true
	}
	return KindText, false
}

// coerce normalizes v for storage in a column of kind k. NaN becomes nil.
func coerce(k Kind, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k {
	case KindInteger:
		return toInt64(v)
	case KindFloat:
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, nil
		}
		return f, nil
	case KindText:
		switch val := v.(type) {
		case string:
			return val, nil
		case []byte:
			return string(val), nil
		case fmt.Stringer:
			return val.String(), nil
		}
	case KindBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrValueKind, v, k)
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrValueKind, n)
		}
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %d overflows int64", ErrValueKind, n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("%w: %T is not integer", ErrValueKind, v)
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %T is not float", ErrValueKind, v)
	}
	return float64(i), nil
}

// FormatValue renders a stored value the way reports print it.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "<null>"
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case float64:
		return fmt.Sprintf("%g", val)
	}
	return fmt.Sprint(v)
}
