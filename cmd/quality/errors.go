package quality

import (
	"errors"
	"fmt"
	"strings"
)

// Condition names the kind of check failure.
type Condition string

const (
	ConditionRowCountMismatch  Condition = "RowCountMismatch"
	ConditionContentMismatch   Condition = "ContentMismatch"
	ConditionSchemaMismatch    Condition = "SchemaMismatch"
	ConditionNotEmpty          Condition = "NotEmpty"
	ConditionEmpty             Condition = "Empty"
	ConditionNullValuesPresent Condition = "NullValuesPresent"
	ConditionUnknownColumn     Condition = "UnknownColumn"
	ConditionDuplicatesFound   Condition = "DuplicatesFound"
)

// maxMessageRows bounds how many rows a failure message prints.
const maxMessageRows = 20

// Violation is a check failure carrying structured diagnostic data.
type Violation interface {
	error
	Condition() Condition
}

// AsViolation unwraps err to a Violation.
func AsViolation(err error) (Violation, bool) {
	var v Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// RowCountMismatchError reports tables of different sizes.
type RowCountMismatchError struct {
	SourceCount int `json:"source_count"`
	TargetCount int `json:"target_count"`
	Difference  int `json:"difference"`
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("row count mismatch: source has %d rows, target has %d rows (difference: %+d)",
		e.SourceCount, e.TargetCount, e.Difference)
}

func (e *RowCountMismatchError) Condition() Condition { return ConditionRowCountMismatch }

// Origin tags which table a differing row came from.
type Origin string

const (
	OriginSource Origin = "source"
	OriginTarget Origin = "target"
)

// DiffRow is a row present in one table but not matched in the other.
type DiffRow struct {
	Origin Origin `json:"origin"`
	Index  int    `json:"index"`
	Values Row    `json:"values"`
}

// ContentMismatchError lists the rows left unmatched on either side.
type ContentMismatchError struct {
	Columns []string  `json:"columns"`
	Rows    []DiffRow `json:"rows"`
}

func (e *ContentMismatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "data completeness check failed: %d differing rows over (%s)",
		len(e.Rows), strings.Join(e.Columns, ", "))
	for i, r := range e.Rows {
		if i == maxMessageRows {
			fmt.Fprintf(&sb, "\n  ... and %d more", len(e.Rows)-maxMessageRows)
			break
		}
		fmt.Fprintf(&sb, "\n  %s[%d]: %s", r.Origin, r.Index, formatRow(r.Values))
	}
	return sb.String()
}

func (e *ContentMismatchError) Condition() Condition { return ConditionContentMismatch }

// KindMismatch is a column present in both tables with incomparable kinds.
type KindMismatch struct {
	Column     string `json:"column"`
	SourceKind Kind   `json:"source_kind"`
	TargetKind Kind   `json:"target_kind"`
}

// SchemaMismatchError reports column sets that cannot be compared.
type SchemaMismatchError struct {
	OnlyInSource   []string       `json:"only_in_source,omitempty"`
	OnlyInTarget   []string       `json:"only_in_target,omitempty"`
	KindMismatches []KindMismatch `json:"kind_mismatches,omitempty"`
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.OnlyInSource) > 0 {
		parts = append(parts, "columns only in source: "+strings.Join(e.OnlyInSource, ", "))
	}
	if len(e.OnlyInTarget) > 0 {
		parts = append(parts, "columns only in target: "+strings.Join(e.OnlyInTarget, ", "))
	}
	for _, m := range e.KindMismatches {
		parts = append(parts, fmt.Sprintf("column %s is %s in source and %s in target", m.Column, m.SourceKind, m.TargetKind))
	}
	return "schema mismatch: " + strings.Join(parts, "; ")
}

func (e *SchemaMismatchError) Condition() Condition { return ConditionSchemaMismatch }

// NotEmptyError reports rows in a table expected to be empty.
type NotEmptyError struct {
	Rows int `json:"rows"`
}

func (e *NotEmptyError) Error() string {
	return fmt.Sprintf("dataset is not empty: it contains %d rows", e.Rows)
}

func (e *NotEmptyError) Condition() Condition { return ConditionNotEmpty }

// EmptyError reports a table expected to hold rows.
type EmptyError struct{}

func (e *EmptyError) Error() string { return "dataset is empty" }

func (e *EmptyError) Condition() Condition { return ConditionEmpty }

// NullValuesPresentError names the columns holding nulls and how many.
type NullValuesPresentError struct {
	Columns    []string       `json:"columns"`
	NullCounts map[string]int `json:"null_counts"`
}

func (e *NullValuesPresentError) Error() string {
	return "null values found in column(s): " + strings.Join(e.Columns, ", ")
}

func (e *NullValuesPresentError) Condition() Condition { return ConditionNullValuesPresent }

// UnknownColumnError reports column names the table does not have.
type UnknownColumnError struct {
	Columns   []string `json:"columns"`
	Available []string `json:"available"`
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column(s): %s (available: %s)",
		strings.Join(e.Columns, ", "), strings.Join(e.Available, ", "))
}

func (e *UnknownColumnError) Condition() Condition { return ConditionUnknownColumn }

// IndexedRow is a full row with its position in the checked table.
type IndexedRow struct {
	Index  int `json:"index"`
	Values Row `json:"values"`
}

// DuplicatesFoundError lists every member of every duplicate group.
type DuplicatesFoundError struct {
	Columns []string     `json:"columns"`
	Groups  int          `json:"groups"`
	Rows    []IndexedRow `json:"rows"`
}

func (e *DuplicatesFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "duplicates found: %d rows in %d groups over (%s)",
		len(e.Rows), e.Groups, strings.Join(e.Columns, ", "))
	for i, r := range e.Rows {
		if i == maxMessageRows {
			fmt.Fprintf(&sb, "\n  ... and %d more", len(e.Rows)-maxMessageRows)
			break
		}
		fmt.Fprintf(&sb, "\n  [%d]: %s", r.Index, formatRow(r.Values))
	}
	return sb.String()
}

func (e *DuplicatesFoundError) Condition() Condition { return ConditionDuplicatesFound }

func formatRow(r Row) string {
	parts := make([]string, len(r))
	for i, v := range r {
		parts[i] = FormatValue(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
