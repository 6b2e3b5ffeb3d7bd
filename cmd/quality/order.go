package quality

import (
	"math"
	"sort"
	"strings"
	"time"
)

// compareValues orders two stored values of kind k. Nulls sort last. For
// float and mixed numeric columns values within tolerance compare equal.
func compareValues(k Kind, a, b any, tolerance float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	switch k {
	case KindInteger:
		x, y := a.(int64), b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case KindFloat:
		x, _ := toFloat64(a)
		y, _ := toFloat64(b)
		switch {
		case x == y:
			return 0
		case math.IsInf(x, 0) || math.IsInf(y, 0):
			// an infinity is never within tolerance of a finite value
		case math.Abs(x-y) <= tolerance:
			return 0
		}
		if x < y {
			return -1
		}
		return 1
	case KindBoolean:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case KindTimestamp:
		return a.(time.Time).Compare(b.(time.Time))
	}
	return strings.Compare(a.(string), b.(string))
}

// rowKey is the projection of a table used for ordering and grouping.
type rowKey struct {
	table     *Table
	positions []int
	kinds     []Kind
	tolerance float64
}

func (k rowKey) compare(i int, other rowKey, j int) int {
	for c := range k.positions {
		a := k.table.rows[i][k.positions[c]]
		b := other.table.rows[j][other.positions[c]]
		if r := compareValues(k.kinds[c], a, b, k.tolerance); r != 0 {
			return r
		}
	}
	return 0
}

// canonicalOrder returns the row indexes of the table stably sorted by the
// key columns. The table itself is not reordered.
func canonicalOrder(key rowKey) []int {
	order := make([]int, key.table.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool {
		return key.compare(order[x], key, order[y]) < 0
	})
	return order
}
