// Package loader writes the generated clinic dataset into a database. The
// source layer holds the raw generated rows; the normalized layer is merged
// from it and is what query-side scenarios usually read.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/generator"
	"github.com/DanyaHDanny/tafordqe/cmd/providers"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// DefaultSourcePrefix names the source layer tables, e.g. src_generated_visits.
const DefaultSourcePrefix = "src_generated_"

var ErrNoColumns = errors.New("table has no columns")

// Result reports what a load did to one table.
type Result struct {
	Table   string
	Rows    int64
	Skipped bool
}

// Loader runs each load in a single transaction on db.
type Loader struct {
	db      *sql.DB
	dialect providers.Dialect
	logger  *slog.Logger
}

func New(db *sql.DB, dialect providers.Dialect, logger *slog.Logger) *Loader {
	return &Loader{db: db, dialect: dialect, logger: logger}
}

type layerTable struct {
	name  string
	key   string
	table *quality.Table
}

// layer lists the tables of one layer in load order: dimensions first.
func layer(d *generator.Dataset, prefix string) []layerTable {
	return []layerTable{
		{name: prefix + "facilities", key: "facility_id", table: d.Facilities},
		{name: prefix + "patients", key: "patient_id", table: d.Patients},
		{name: prefix + "visits", table: d.Visits},
	}
}

// LoadSource creates the source tables when missing and inserts the dataset.
// When the visits table already holds rows nothing is inserted, so repeated
// runs keep the first load. Any failure rolls the whole load back.
func (l *Loader) LoadSource(ctx context.Context, d *generator.Dataset, prefix string) ([]Result, error) {
	var results []Result
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		tables := layer(d, prefix)
		if err := l.createTables(ctx, tx, tables); err != nil {
			return err
		}

		visits := tables[len(tables)-1].name
		empty, err := l.isEmpty(ctx, tx, visits)
		if err != nil {
			return err
		}
		if !empty {
			l.logger.Info("Source tables already hold data, skipping insert", "table", visits)
			for _, lt := range tables {
				results = append(results, Result{Table: lt.name, Skipped: true})
			}
			return nil
		}

		for _, lt := range tables {
			n, err := l.insertRows(ctx, tx, lt.name, lt.table)
			if err != nil {
				return err
			}
			l.logger.Debug("Inserted rows", "table", lt.name, "rows", n)
			results = append(results, Result{Table: lt.name, Rows: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Normalize merges the source layer into the facilities, patients and visits
// tables. Dimension rows are inserted when their key is missing. Visits from
// scope onwards are replaced by the source visits of the same period; a zero
// scope replaces every visit.
func (l *Loader) Normalize(ctx context.Context, d *generator.Dataset, prefix string, scope time.Time) ([]Result, error) {
	var results []Result
	err := l.inTx(ctx, func(tx *sql.Tx) error {
		sources := layer(d, prefix)
		targets := layer(d, "")
		if err := l.createTables(ctx, tx, targets); err != nil {
			return err
		}

		for i, target := range targets {
			source := sources[i]
			cols := l.columnList(target.table)
			var (
				res sql.Result
				err error
			)
			if target.key != "" {
				key := l.dialect.QuoteIdentifier(target.key)
				query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s s WHERE NOT EXISTS (SELECT 1 FROM %s t WHERE t.%s = s.%s)",
					l.quote(target.name), cols, prefixed("s.", l.quotedColumns(target.table)),
					l.quote(source.name), l.quote(target.name), key, key)
				res, err = tx.ExecContext(ctx, query)
			} else {
				res, err = l.replaceVisits(ctx, tx, source.name, target.name, cols, scope)
			}
			if err != nil {
				return fmt.Errorf("failed to merge %s: %w", target.name, err)
			}
			n, _ := res.RowsAffected()
			results = append(results, Result{Table: target.name, Rows: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (l *Loader) replaceVisits(ctx context.Context, tx *sql.Tx, source, target, cols string, scope time.Time) (sql.Result, error) {
	where, args := "", []any(nil)
	if !scope.IsZero() {
		where = fmt.Sprintf(" WHERE %s >= %s", l.dialect.QuoteIdentifier("visit_timestamp"), l.dialect.Placeholder(0))
		args = []any{scope}
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM "+l.quote(target)+where, args...)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		l.logger.Debug("Replacing visits", "table", target, "deleted", n, "scope", scope)
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s%s", l.quote(target), cols, cols, l.quote(source), where)
	return tx.ExecContext(ctx, query, args...)
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (l *Loader) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			l.logger.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (l *Loader) createTables(ctx context.Context, tx *sql.Tx, tables []layerTable) error {
	for _, lt := range tables {
		cols := lt.table.Columns()
		if len(cols) == 0 {
			return fmt.Errorf("%w: %s", ErrNoColumns, lt.name)
		}
		defs := make([]string, len(cols))
		for i, col := range cols {
			defs[i] = l.dialect.QuoteIdentifier(col.Name) + " " + l.dialect.ColumnType(col.Kind)
			if !col.Nullable {
				defs[i] += " NOT NULL"
			}
		}
		if _, err := tx.ExecContext(ctx, l.dialect.CreateTableQuery(lt.name, defs)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", lt.name, err)
		}
	}
	return nil
}

func (l *Loader) isEmpty(ctx context.Context, tx *sql.Tx, table string) (bool, error) {
	var n int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+l.quote(table)).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return n == 0, nil
}

func (l *Loader) insertRows(ctx context.Context, tx *sql.Tx, name string, t *quality.Table) (int64, error) {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		l.quote(name), l.columnList(t), providers.Placeholders(l.dialect, len(t.Columns())))
	var n int64
	for i := 0; i < t.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if _, err := tx.ExecContext(ctx, query, t.Row(i)...); err != nil {
			return n, fmt.Errorf("failed to insert row %d into %s: %w", i, name, err)
		}
		n++
	}
	return n, nil
}

func (l *Loader) quote(table string) string { return providers.QuoteQualified(l.dialect, table) }

func (l *Loader) quotedColumns(t *quality.Table) []string {
	names := t.ColumnNames()
	for i, n := range names {
		names[i] = l.dialect.QuoteIdentifier(n)
	}
	return names
}

func (l *Loader) columnList(t *quality.Table) string {
	return strings.Join(l.quotedColumns(t), ", ")
}

func prefixed(alias string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + c
	}
	return strings.Join(out, ", ")
}
