// Package quality holds the tabular data-quality checks. Every check reads
// its tables without mutating them and returns nil on success or a
// Violation describing the failure.
package quality

import (
	"sort"
)

type options struct {
	floatTolerance float64
}

// Option tunes a comparison.
type Option func(*options)

// WithFloatTolerance treats float values within eps of each other as equal.
// The default is exact equality.
func WithFloatTolerance(eps float64) Option {
	return func(o *options) {
		if eps > 0 {
			o.floatTolerance = eps
		}
	}
}

// CheckCount fails when the two tables hold a different number of rows.
func CheckCount(source, target *Table) error {
	if source.Len() == target.Len() {
		return nil
	}
	return &RowCountMismatchError{
		SourceCount: source.Len(),
		TargetCount: target.Len(),
		Difference:  source.Len() - target.Len(),
	}
}

// CheckDataCompleteness reports the multiset symmetric difference of the
// rows of both tables. Both must have the same column set; target columns
// are aligned to the source column order.
func CheckDataCompleteness(source, target *Table, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	srcKey, tgtKey, err := alignSchemas(source, target, o.floatTolerance)
	if err != nil {
		return err
	}
	srcOrder := canonicalOrder(srcKey)
	tgtOrder := canonicalOrder(tgtKey)

	var diff []DiffRow
	i, j := 0, 0
	for i < len(srcOrder) && j < len(tgtOrder) {
		switch c := srcKey.compare(srcOrder[i], tgtKey, tgtOrder[j]); {
		case c == 0:
			i++
			j++
		case c < 0:
			diff = append(diff, DiffRow{Origin: OriginSource, Index: srcOrder[i], Values: source.Row(srcOrder[i])})
			i++
		default:
			diff = append(diff, DiffRow{Origin: OriginTarget, Index: tgtOrder[j], Values: alignedRow(target, tgtKey.positions, tgtOrder[j])})
			j++
		}
	}
	for ; i < len(srcOrder); i++ {
		diff = append(diff, DiffRow{Origin: OriginSource, Index: srcOrder[i], Values: source.Row(srcOrder[i])})
	}
	for ; j < len(tgtOrder); j++ {
		diff = append(diff, DiffRow{Origin: OriginTarget, Index: tgtOrder[j], Values: alignedRow(target, tgtKey.positions, tgtOrder[j])})
	}

	if len(diff) == 0 {
		return nil
	}
	return &ContentMismatchError{Columns: source.ColumnNames(), Rows: diff}
}

func alignSchemas(source, target *Table, tolerance float64) (rowKey, rowKey, error) {
	mismatch := &SchemaMismatchError{}
	srcKey := rowKey{table: source, tolerance: tolerance}
	tgtKey := rowKey{table: target, tolerance: tolerance}

	for i, col := range source.columns {
		other, j, ok := target.Column(col.Name)
		if !ok {
			mismatch.OnlyInSource = append(mismatch.OnlyInSource, col.Name)
			continue
		}
		kind := col.Kind
		switch {
		case col.Kind == other.Kind:
		case col.Untyped:
			kind = other.Kind
		case other.Untyped:
		case col.Kind.numeric() && other.Kind.numeric():
			kind = KindFloat
		default:
			mismatch.KindMismatches = append(mismatch.KindMismatches, KindMismatch{
				Column: col.Name, SourceKind: col.Kind, TargetKind: other.Kind,
			})
			continue
		}
		srcKey.positions = append(srcKey.positions, i)
		tgtKey.positions = append(tgtKey.positions, j)
		srcKey.kinds = append(srcKey.kinds, kind)
	}
	for _, col := range target.columns {
		if _, ok := source.index[col.Name]; !ok {
			mismatch.OnlyInTarget = append(mismatch.OnlyInTarget, col.Name)
		}
	}
	if len(mismatch.OnlyInSource) > 0 || len(mismatch.OnlyInTarget) > 0 || len(mismatch.KindMismatches) > 0 {
		return rowKey{}, rowKey{}, mismatch
	}
	tgtKey.kinds = srcKey.kinds
	return srcKey, tgtKey, nil
}

// alignedRow returns a target row in source column order.
func alignedRow(t *Table, positions []int, i int) Row {
	out := make(Row, len(positions))
	for c, p := range positions {
		out[c] = t.rows[i][p]
	}
	return out
}

// CheckDatasetIsEmpty fails when t holds any rows.
func CheckDatasetIsEmpty(t *Table) error {
	if t.Len() == 0 {
		return nil
	}
	return &NotEmptyError{Rows: t.Len()}
}

// CheckDatasetIsNotEmpty fails when t holds no rows.
func CheckDatasetIsNotEmpty(t *Table) error {
	if t.Len() > 0 {
		return nil
	}
	return &EmptyError{}
}

// CheckNotNullValues fails if any of the named columns holds a null. With
// no names every column is checked. Unknown names fail before any scanning.
func CheckNotNullValues(t *Table, columns ...string) error {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	positions, err := t.lookup(columns)
	if err != nil {
		return err
	}

	var offending []string
	counts := map[string]int{}
	for c, p := range positions {
		n := 0
		for _, row := range t.rows {
			if row[p] == nil {
				n++
			}
		}
		if n > 0 {
			name := columns[c]
			if _, seen := counts[name]; !seen {
				offending = append(offending, name)
			}
			counts[name] = n
		}
	}
	if len(offending) == 0 {
		return nil
	}
	return &NullValuesPresentError{Columns: offending, NullCounts: counts}
}

// CheckDuplicates fails if two or more rows share the same values over the
// named columns (the full row when none are named). Every member of every
// duplicate group is reported, in original row order.
func CheckDuplicates(t *Table, columns ...string) error {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	positions, err := t.lookup(columns)
	if err != nil {
		return err
	}
	key := rowKey{table: t, positions: positions, kinds: make([]Kind, len(positions))}
	for i, p := range positions {
		key.kinds[i] = t.columns[p].Kind
	}

	order := canonicalOrder(key)
	var members []int
	groups := 0
	for start := 0; start < len(order); {
		end := start + 1
		for end < len(order) && key.compare(order[start], key, order[end]) == 0 {
			end++
		}
		if end-start > 1 {
			groups++
			members = append(members, order[start:end]...)
		}
		start = end
	}
	if groups == 0 {
		return nil
	}

	sort.Ints(members)
	rows := make([]IndexedRow, len(members))
	for i, idx := range members {
		rows[i] = IndexedRow{Index: idx, Values: t.Row(idx)}
	}
	return &DuplicatesFoundError{Columns: columns, Groups: groups, Rows: rows}
}
