package quality

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateColumn = errors.New("duplicate column name")
	ErrEmptyColumnName = errors.New("column name is required")
	ErrArity           = errors.New("row has wrong number of values")
	ErrNullValue       = errors.New("null value in non-nullable column")
	ErrValueKind       = errors.New("value does not match column kind")
	ErrKindConflict    = errors.New("column kinds conflict")
	ErrUnknownKind     = errors.New("unknown column kind")
)

// Column describes one named, typed column. An Untyped column had no
// value to infer its kind from; it adopts the kind of any column it is
// merged or compared with.
type Column struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Nullable bool   `json:"nullable"`
	Untyped  bool   `json:"untyped,omitempty"`
}

// Row holds one stored value per column, in column order.
type Row []any

// Table is an in-memory dataset: ordered columns and unordered rows.
// Checks only read tables, so a filled table may be shared between goroutines.
type Table struct {
	columns []Column
	index   map[string]int
	rows    []Row
}

// NewTable creates an empty table. Column names must be unique and non-empty.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, col := range columns {
		if col.Name == "" {
			return nil, fmt.Errorf("%w (position %d)", ErrEmptyColumnName, i)
		}
		if _, exists := t.index[col.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, col.Name)
		}
		t.columns[i] = col
		t.index[col.Name] = i
	}
	return t, nil
}

// Append adds a row, coercing each value to its column's kind.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("%w: got %d, want %d", ErrArity, len(values), len(t.columns))
	}
	row := make(Row, len(values))
	for i, v := range values {
		col := t.columns[i]
		stored, err := coerce(col.Kind, v)
		if err != nil {
			return fmt.Errorf("column %s: %w", col.Name, err)
		}
		if stored == nil && !col.Nullable {
			return fmt.Errorf("column %s: %w", col.Name, ErrNullValue)
		}
		row[i] = stored
	}
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns a copy of the column definitions.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Column returns the named column and its position.
func (t *Table) Column(name string) (Column, int, bool) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, -1, false
	}
	return t.columns[i], i, true
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	out := make(Row, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Value returns the stored value at row and column position.
func (t *Table) Value(row, col int) any { return t.rows[row][col] }

// lookup resolves names to positions, collecting every unknown name.
func (t *Table) lookup(names []string) ([]int, error) {
	positions := make([]int, 0, len(names))
	var missing []string
	for _, name := range names {
		i, ok := t.index[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		positions = append(positions, i)
	}
	if len(missing) > 0 {
		return nil, &UnknownColumnError{Columns: missing, Available: t.ColumnNames()}
	}
	return positions, nil
}

// Project returns a new table with only the named columns, in the given order.
func (t *Table) Project(names ...string) (*Table, error) {
	positions, err := t.lookup(names)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(positions))
	for i, p := range positions {
		cols[i] = t.columns[p]
	}
	out, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	out.rows = make([]Row, len(t.rows))
	for r, row := range t.rows {
		projected := make(Row, len(positions))
		for i, p := range positions {
			projected[i] = row[p]
		}
		out.rows[r] = projected
	}
	return out, nil
}

// Concat unions tables by column name. Columns missing from a table are
// filled with nulls and become nullable; integer and float widen to float.
func Concat(tables ...*Table) (*Table, error) {
	var cols []Column
	index := map[string]int{}
	for _, t := range tables {
		for _, col := range t.columns {
			i, seen := index[col.Name]
			if !seen {
				index[col.Name] = len(cols)
				cols = append(cols, col)
				continue
			}
			merged, err := mergeColumn(cols[i], col)
			if err != nil {
				return nil, err
			}
			cols[i] = merged
		}
	}
	for i := range cols {
		for _, t := range tables {
			if _, ok := t.index[cols[i].Name]; !ok {
				cols[i].Nullable = true
			}
		}
	}

	out, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	for _, t := range tables {
		positions := make([]int, len(cols))
		for i, col := range cols {
			p, ok := t.index[col.Name]
			if !ok {
				p = -1
			}
			positions[i] = p
		}
		for _, row := range t.rows {
			merged := make(Row, len(cols))
			for i, p := range positions {
				if p < 0 || row[p] == nil {
					continue
				}
				v, err := coerce(cols[i].Kind, row[p])
				if err != nil {
					return nil, fmt.Errorf("column %s: %w", cols[i].Name, err)
				}
				merged[i] = v
			}
			out.rows = append(out.rows, merged)
		}
	}
	return out, nil
}

func mergeColumn(a, b Column) (Column, error) {
	out := a
	out.Nullable = a.Nullable || b.Nullable
	switch {
	case b.Untyped:
	case a.Untyped:
		out.Kind, out.Untyped = b.Kind, false
	case a.Kind == b.Kind:
	case a.Kind.numeric() && b.Kind.numeric():
		out.Kind = KindFloat
	default:
		return Column{}, fmt.Errorf("%w: %s is %s and %s", ErrKindConflict, a.Name, a.Kind, b.Kind)
	}
	return out, nil
}

// InferTable builds a nullable table from loosely typed records. Kinds come
// from the non-null values: integer and float widen to float, any other mix
// becomes text. Columns are ordered by order, then by any extra keys sorted.
func InferTable(order []string, records []map[string]any) (*Table, error) {
	names := append([]string(nil), order...)
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	var extra []string
	for _, rec := range records {
		for k := range rec {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	names = append(names, extra...)

	cols := make([]Column, len(names))
	for i, name := range names {
		values := make([]any, 0, len(records))
		for _, rec := range records {
			values = append(values, rec[name])
		}
		cols[i] = InferColumn(name, values)
	}
	t, err := NewTable(cols...)
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]any, len(cols))
		for i, col := range cols {
			row[i] = conform(col.Kind, rec[col.Name])
		}
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// InferColumn returns a nullable column whose kind is inferred from values.
// With no non-null value the column is text and Untyped.
func InferColumn(name string, values []any) Column {
	kind, found := inferKind(values)
	return Column{Name: name, Kind: kind, Nullable: true, Untyped: !found}
}

// InferKind picks the column kind for a set of loosely typed values.
func InferKind(values []any) Kind {
	kind, _ := inferKind(values)
	return kind
}

func inferKind(values []any) (Kind, bool) {
	kind, found := KindText, false
	for _, v := range values {
		if v == nil {
			continue
		}
		k, ok := KindOf(v)
		if !ok {
			return KindText, true
		}
		switch {
		case !found:
			kind, found = k, true
		case kind == k:
		case kind.numeric() && k.numeric():
			kind = KindFloat
		default:
			return KindText, true
		}
	}
	return kind, found
}

// conform renders values that cannot be coerced as text when the inferred
// column fell back to text.
func conform(k Kind, v any) any {
	if v == nil || k != KindText {
		return v
	}
	switch v.(type) {
	case string, []byte:
		return v
	}
	return FormatValue(v)
}
