package quality

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func mustTable(t *testing.T, cols []Column, rows ...[]any) *Table {
	t.Helper()
	tbl, err := NewTable(cols...)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatalf("Append(%v) error = %v", r, err)
		}
	}
	return tbl
}

var idName = []Column{
	{Name: "id", Kind: KindInteger},
	{Name: "name", Kind: KindText, Nullable: true},
}

func TestCheckCount(t *testing.T) {
	three := mustTable(t, idName, []any{1, "a"}, []any{2, "b"}, []any{3, "c"})
	two := mustTable(t, idName, []any{1, "a"}, []any{2, "b"})

	if err := CheckCount(three, three); err != nil {
		t.Fatalf("equal counts: unexpected error %v", err)
	}

	err := CheckCount(three, two)
	var mismatch *RowCountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected RowCountMismatchError, got %v", err)
	}
	if mismatch.SourceCount != 3 || mismatch.TargetCount != 2 || mismatch.Difference != 1 {
		t.Fatalf("unexpected payload %+v", mismatch)
	}
	if !strings.Contains(err.Error(), "difference: +1") {
		t.Fatalf("message should show signed difference, got %q", err.Error())
	}

	err = CheckCount(two, three)
	if !errors.As(err, &mismatch) || mismatch.Difference != -1 {
		t.Fatalf("expected difference -1, got %v", err)
	}
}

func TestCheckDataCompleteness(t *testing.T) {
	t.Run("order independent", func(t *testing.T) {
		a := mustTable(t, idName, []any{1, "x"}, []any{2, "y"}, []any{3, nil})
		b := mustTable(t, idName, []any{3, nil}, []any{1, "x"}, []any{2, "y"})
		if err := CheckDataCompleteness(a, b); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("duplicates are counted individually", func(t *testing.T) {
		a := mustTable(t, idName, []any{1, "x"})
		b := mustTable(t, idName, []any{1, "x"}, []any{1, "x"})
		err := CheckDataCompleteness(a, b)
		var mismatch *ContentMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected ContentMismatchError, got %v", err)
		}
		if len(mismatch.Rows) != 1 {
			t.Fatalf("expected one differing row, got %d", len(mismatch.Rows))
		}
		if mismatch.Rows[0].Origin != OriginTarget {
			t.Fatalf("expected extra row from target, got %s", mismatch.Rows[0].Origin)
		}
	})

	t.Run("tags rows by origin", func(t *testing.T) {
		a := mustTable(t, idName, []any{1, "x"}, []any{2, "y"})
		b := mustTable(t, idName, []any{1, "x"}, []any{4, "z"})
		err := CheckDataCompleteness(a, b)
		var mismatch *ContentMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected ContentMismatchError, got %v", err)
		}
		if len(mismatch.Rows) != 2 {
			t.Fatalf("expected 2 differing rows, got %+v", mismatch.Rows)
		}
		if mismatch.Rows[0].Origin != OriginSource || mismatch.Rows[0].Index != 1 {
			t.Fatalf("unexpected first diff row %+v", mismatch.Rows[0])
		}
		if mismatch.Rows[1].Origin != OriginTarget || mismatch.Rows[1].Values[0] != int64(4) {
			t.Fatalf("unexpected second diff row %+v", mismatch.Rows[1])
		}
	})

	t.Run("column order is aligned", func(t *testing.T) {
		a := mustTable(t, idName, []any{1, "x"})
		b := mustTable(t, []Column{idName[1], idName[0]}, []any{"x", 1})
		if err := CheckDataCompleteness(a, b); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("different column sets fail with schema mismatch", func(t *testing.T) {
		a := mustTable(t, idName, []any{1, "x"})
		b := mustTable(t, []Column{idName[0], {Name: "label", Kind: KindText}}, []any{1, "x"})
		err := CheckDataCompleteness(a, b)
		var mismatch *SchemaMismatchError
		if !errors.As(err, &mismatch) {
			t.Fatalf("expected SchemaMismatchError, got %v", err)
		}
		if len(mismatch.OnlyInSource) != 1 || mismatch.OnlyInSource[0] != "name" {
			t.Fatalf("unexpected OnlyInSource %v", mismatch.OnlyInSource)
		}
		if len(mismatch.OnlyInTarget) != 1 || mismatch.OnlyInTarget[0] != "label" {
			t.Fatalf("unexpected OnlyInTarget %v", mismatch.OnlyInTarget)
		}
	})

	t.Run("incomparable kinds fail with schema mismatch", func(t *testing.T) {
		a := mustTable(t, []Column{{Name: "v", Kind: KindText}}, []any{"1"})
		b := mustTable(t, []Column{{Name: "v", Kind: KindInteger}}, []any{1})
		err := CheckDataCompleteness(a, b)
		var mismatch *SchemaMismatchError
		if !errors.As(err, &mismatch) || len(mismatch.KindMismatches) != 1 {
			t.Fatalf("expected one kind mismatch, got %v", err)
		}
	})

	t.Run("integer and float compare numerically", func(t *testing.T) {
		a := mustTable(t, []Column{{Name: "v", Kind: KindInteger}}, []any{1}, []any{2})
		b := mustTable(t, []Column{{Name: "v", Kind: KindFloat}}, []any{2.0}, []any{1.0})
		if err := CheckDataCompleteness(a, b); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("float tolerance", func(t *testing.T) {
		cols := []Column{{Name: "v", Kind: KindFloat}}
		a := mustTable(t, cols, []any{10.004})
		b := mustTable(t, cols, []any{10.0})
		if err := CheckDataCompleteness(a, b); err == nil {
			t.Fatal("exact comparison should fail")
		}
		if err := CheckDataCompleteness(a, b, WithFloatTolerance(0.01)); err != nil {
			t.Fatalf("tolerant comparison failed: %v", err)
		}
	})

	t.Run("timestamps", func(t *testing.T) {
		cols := []Column{{Name: "ts", Kind: KindTimestamp}}
		t1 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
		t2 := t1.Add(time.Hour)
		a := mustTable(t, cols, []any{t1}, []any{t2})
		b := mustTable(t, cols, []any{t2}, []any{t1.In(time.FixedZone("X", 3600))})
		if err := CheckDataCompleteness(a, b); err != nil {
			t.Fatalf("same instants in different zones should match: %v", err)
		}
	})
}

func TestCheckDataCompletenessProperties(t *testing.T) {
	a := mustTable(t, idName, []any{1, "x"}, []any{2, nil}, []any{2, nil}, []any{3, "z"})
	b := mustTable(t, idName, []any{3, "z"}, []any{2, nil}, []any{1, "x"}, []any{5, "q"})
	c := mustTable(t, idName, []any{2, nil}, []any{3, "z"}, []any{1, "x"}, []any{2, nil})

	t.Run("symmetric", func(t *testing.T) {
		for _, pair := range [][2]*Table{{a, b}, {a, c}, {b, c}} {
			ab := CheckDataCompleteness(pair[0], pair[1])
			ba := CheckDataCompleteness(pair[1], pair[0])
			if (ab == nil) != (ba == nil) {
				t.Fatalf("asymmetric result: %v vs %v", ab, ba)
			}
		}
	})

	t.Run("success implies equal counts", func(t *testing.T) {
		if err := CheckDataCompleteness(a, c); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if err := CheckCount(a, c); err != nil {
			t.Fatalf("count should match when completeness passes: %v", err)
		}
	})

	t.Run("idempotent and non-mutating", func(t *testing.T) {
		before := a.Row(0)
		first := CheckDataCompleteness(a, b)
		second := CheckDataCompleteness(a, b)
		if first.Error() != second.Error() {
			t.Fatalf("results differ: %q vs %q", first, second)
		}
		if a.Row(0)[0] != before[0] {
			t.Fatal("check reordered the table")
		}
	})
}

func TestEmptinessChecks(t *testing.T) {
	empty := mustTable(t, idName)
	full := mustTable(t, idName, []any{1, "x"}, []any{2, "y"})

	if err := CheckDatasetIsEmpty(empty); err != nil {
		t.Fatalf("CheckDatasetIsEmpty(empty) = %v", err)
	}
	err := CheckDatasetIsEmpty(full)
	var notEmpty *NotEmptyError
	if !errors.As(err, &notEmpty) || notEmpty.Rows != 2 {
		t.Fatalf("expected NotEmptyError with 2 rows, got %v", err)
	}

	if err := CheckDatasetIsNotEmpty(full); err != nil {
		t.Fatalf("CheckDatasetIsNotEmpty(full) = %v", err)
	}
	err = CheckDatasetIsNotEmpty(empty)
	var isEmpty *EmptyError
	if !errors.As(err, &isEmpty) {
		t.Fatalf("expected EmptyError, got %v", err)
	}
	if err.Error() != "dataset is empty" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestCheckNotNullValues(t *testing.T) {
	cols := []Column{
		{Name: "a", Kind: KindInteger, Nullable: true},
		{Name: "b", Kind: KindText, Nullable: true},
		{Name: "c", Kind: KindFloat, Nullable: true},
	}
	tbl := mustTable(t, cols,
		[]any{1, nil, 1.5},
		[]any{nil, "x", 2.5},
		[]any{3, nil, 3.5},
	)

	tests := []struct {
		name    string
		columns []string
		want    []string
	}{
		{name: "all columns by default", columns: nil, want: []string{"a", "b"}},
		{name: "scoped to clean column", columns: []string{"c"}, want: nil},
		{name: "scoped to one dirty column", columns: []string{"b", "c"}, want: []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckNotNullValues(tbl, tt.columns...)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			var nulls *NullValuesPresentError
			if !errors.As(err, &nulls) {
				t.Fatalf("expected NullValuesPresentError, got %v", err)
			}
			if strings.Join(nulls.Columns, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("columns = %v, want %v", nulls.Columns, tt.want)
			}
		})
	}

	t.Run("NaN counts as null", func(t *testing.T) {
		withNaN := mustTable(t, cols, []any{1, "x", nanValue()})
		err := CheckNotNullValues(withNaN, "c")
		var nulls *NullValuesPresentError
		if !errors.As(err, &nulls) || nulls.NullCounts["c"] != 1 {
			t.Fatalf("expected one null in c, got %v", err)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		err := CheckNotNullValues(tbl, "a", "zzz", "yyy")
		var unknown *UnknownColumnError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownColumnError, got %v", err)
		}
		if strings.Join(unknown.Columns, ",") != "zzz,yyy" {
			t.Fatalf("unexpected unknown columns %v", unknown.Columns)
		}
		if v, ok := AsViolation(err); !ok || v.Condition() != ConditionUnknownColumn {
			t.Fatalf("AsViolation() = %v, %v", v, ok)
		}
	})
}

func TestCheckDuplicates(t *testing.T) {
	t.Run("reports every member of a group", func(t *testing.T) {
		tbl := mustTable(t, idName, []any{1, "A"}, []any{1, "A"}, []any{2, "B"})
		err := CheckDuplicates(tbl)
		var dups *DuplicatesFoundError
		if !errors.As(err, &dups) {
			t.Fatalf("expected DuplicatesFoundError, got %v", err)
		}
		if dups.Groups != 1 || len(dups.Rows) != 2 {
			t.Fatalf("unexpected payload %+v", dups)
		}
		if dups.Rows[0].Index != 0 || dups.Rows[1].Index != 1 {
			t.Fatalf("unexpected indexes %+v", dups.Rows)
		}
	})

	t.Run("subset of columns", func(t *testing.T) {
		tbl := mustTable(t, idName, []any{1, "x"}, []any{2, "y"}, []any{1, "z"}, []any{3, "y"})
		err := CheckDuplicates(tbl, "id")
		var dups *DuplicatesFoundError
		if !errors.As(err, &dups) {
			t.Fatalf("expected DuplicatesFoundError, got %v", err)
		}
		if len(dups.Rows) != 2 || dups.Rows[0].Index != 0 || dups.Rows[1].Index != 2 {
			t.Fatalf("unexpected rows %+v", dups.Rows)
		}
		if dups.Rows[1].Values[1] != "z" {
			t.Fatalf("expected full row values, got %v", dups.Rows[1].Values)
		}
	})

	t.Run("nulls group together", func(t *testing.T) {
		tbl := mustTable(t, idName, []any{1, nil}, []any{2, nil})
		if err := CheckDuplicates(tbl, "name"); err == nil {
			t.Fatal("expected rows with null names to be duplicates")
		}
	})

	t.Run("unique rows pass", func(t *testing.T) {
		tbl := mustTable(t, idName, []any{1, "x"}, []any{2, "x"})
		if err := CheckDuplicates(tbl); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		tbl := mustTable(t, idName, []any{1, "x"})
		err := CheckDuplicates(tbl, "nope")
		var unknown *UnknownColumnError
		if !errors.As(err, &unknown) {
			t.Fatalf("expected UnknownColumnError, got %v", err)
		}
	})
}

func TestNonFiniteFloats(t *testing.T) {
	cols := []Column{{Name: "v", Kind: KindFloat, Nullable: true}}
	inf, negInf := math.Inf(1), math.Inf(-1)

	t.Run("identical infinities are complete", func(t *testing.T) {
		a := mustTable(t, cols, []any{inf}, []any{1.5}, []any{negInf})
		b := mustTable(t, cols, []any{negInf}, []any{inf}, []any{1.5})
		if err := CheckDataCompleteness(a, b); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if err := CheckDataCompleteness(a, b, WithFloatTolerance(0.01)); err != nil {
			t.Fatalf("unexpected error with tolerance %v", err)
		}
	})

	t.Run("infinity is not within tolerance of a finite value", func(t *testing.T) {
		a := mustTable(t, cols, []any{inf})
		b := mustTable(t, cols, []any{math.MaxFloat64})
		var mismatch *ContentMismatchError
		if err := CheckDataCompleteness(a, b, WithFloatTolerance(math.MaxFloat64)); !errors.As(err, &mismatch) || len(mismatch.Rows) != 2 {
			t.Fatalf("expected 2 differing rows, got %v", err)
		}
		c := mustTable(t, cols, []any{negInf})
		if err := CheckDataCompleteness(a, c); !errors.As(err, &mismatch) {
			t.Fatalf("+Inf and -Inf must differ, got %v", err)
		}
	})

	t.Run("infinities group as duplicates", func(t *testing.T) {
		tbl := mustTable(t, cols, []any{inf}, []any{2.0}, []any{inf}, []any{negInf})
		var dup *DuplicatesFoundError
		if err := CheckDuplicates(tbl); !errors.As(err, &dup) || dup.Groups != 1 || len(dup.Rows) != 2 {
			t.Fatalf("expected one group of two +Inf rows, got %v", err)
		}
		if dup.Rows[0].Index != 0 || dup.Rows[1].Index != 2 {
			t.Fatalf("unexpected members %+v", dup.Rows)
		}
	})

	t.Run("order puts infinities at the ends", func(t *testing.T) {
		tbl := mustTable(t, cols, []any{inf}, []any{nil}, []any{0.5}, []any{negInf})
		key := rowKey{table: tbl, positions: []int{0}, kinds: []Kind{KindFloat}, tolerance: 1}
		order := canonicalOrder(key)
		want := []int{3, 2, 0, 1}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("canonical order = %v, want %v", order, want)
			}
		}
	})
}

func TestUntypedColumnsCompare(t *testing.T) {
	allNull := mustTable(t, []Column{
		{Name: "id", Kind: KindInteger},
		{Name: "score", Kind: KindText, Nullable: true, Untyped: true},
	}, []any{1, nil}, []any{2, nil})
	typed := mustTable(t, []Column{
		{Name: "id", Kind: KindInteger},
		{Name: "score", Kind: KindFloat, Nullable: true},
	}, []any{2, nil}, []any{1, nil})

	if err := CheckDataCompleteness(allNull, typed); err != nil {
		t.Fatalf("all-null column should compare with any kind: %v", err)
	}
	if err := CheckDataCompleteness(typed, allNull); err != nil {
		t.Fatalf("all-null column should compare with any kind: %v", err)
	}
}

func TestSingleTableChecksAreIdempotent(t *testing.T) {
	cols := []Column{
		{Name: "id", Kind: KindInteger},
		{Name: "name", Kind: KindText, Nullable: true},
	}
	tbl := mustTable(t, cols, []any{3, "c"}, []any{1, nil}, []any{3, "c"}, []any{2, "b"})
	snapshot := func() []Row {
		rows := make([]Row, tbl.Len())
		for i := range rows {
			rows[i] = tbl.Row(i)
		}
		return rows
	}
	before := snapshot()

	checks := map[string]func() error{
		"empty":      func() error { return CheckDatasetIsEmpty(tbl) },
		"not_empty":  func() error { return CheckDatasetIsNotEmpty(tbl) },
		"not_null":   func() error { return CheckNotNullValues(tbl) },
		"duplicates": func() error { return CheckDuplicates(tbl) },
		"count":      func() error { return CheckCount(tbl, tbl) },
	}
	for name, check := range checks {
		t.Run(name, func(t *testing.T) {
			first, second := check(), check()
			if (first == nil) != (second == nil) || (first != nil && first.Error() != second.Error()) {
				t.Fatalf("results differ: %v vs %v", first, second)
			}
			after := snapshot()
			for i := range before {
				for c := range before[i] {
					if before[i][c] != after[i][c] {
						t.Fatalf("check mutated row %d: %v -> %v", i, before[i], after[i])
					}
				}
			}
		})
	}
}
