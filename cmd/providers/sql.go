package providers

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

// SQLConfig controls how queries are executed.
type SQLConfig struct {
	StatementTimeout time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
}

// SQLProvider runs a query (or reads a whole table) and materializes the result.
type SQLProvider struct {
	db      *sql.DB
	dialect Dialect
	config  SQLConfig
	logger  *slog.Logger
}

func NewSQLProvider(db *sql.DB, dialect Dialect, config SQLConfig, logger *slog.Logger) *SQLProvider {
	return &SQLProvider{db: db, dialect: dialect, config: config, logger: logger}
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg ConnConfig) (*sql.DB, Dialect, error) {
	d, err := GetDialect(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(d.DriverName(), d.DSN(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, d, nil
}

// isConnectionError checks if an error is a connection-related error
func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "bad connection") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "sql: database is closed")
}

// Fetch runs the locator query, retrying connection errors.
func (p *SQLProvider) Fetch(ctx context.Context, loc Locator) (*quality.Table, error) {
	query := loc.Query
	if loc.Table != "" {
		query = "SELECT * FROM " + quoteQualified(p.dialect, loc.Table)
	}

	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying query after connection error",
				"attempt", attempt, "max_retries", p.config.MaxRetries, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}

		table, err := p.fetchOnce(ctx, query)
		if err == nil {
			return project(table, loc.Columns)
		}
		if !isConnectionError(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("query failed after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

func (p *SQLProvider) fetchOnce(ctx context.Context, query string) (*quality.Table, error) {
	if p.config.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.StatementTimeout)
		defer cancel()
	}

	start := time.Now()
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	var raw [][]any
	for rows.Next() {
		values := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		raw = append(raw, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	table, err := buildTable(types, raw)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("query materialized", "rows", table.Len(), "columns", len(types), "duration", time.Since(start))
	return table, nil
}

func buildTable(types []*sql.ColumnType, raw [][]any) (*quality.Table, error) {
	cols := make([]quality.Column, len(types))
	for c, ct := range types {
		kind, known := kindForDatabaseType(ct.DatabaseTypeName())
		if !known {
			values := make([]any, len(raw))
			for r := range raw {
				raw[r][c] = unwrapBytes(raw[r][c])
				values[r] = raw[r][c]
			}
			kind = quality.InferKind(values)
		}
		cols[c] = quality.Column{Name: ct.Name(), Kind: kind, Nullable: true}
	}

	table, err := quality.NewTable(cols...)
	if err != nil {
		return nil, err
	}
	for _, values := range raw {
		for c, col := range cols {
			v, err := convertSQLValue(col.Kind, values[c])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", col.Name, err)
			}
			values[c] = v
		}
		if err := table.Append(values...); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func unwrapBytes(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// convertSQLValue parses the textual values drivers return for numeric,
// boolean and temporal columns.
func convertSQLValue(kind quality.Kind, v any) (any, error) {
	v = unwrapBytes(v)
	if v == nil {
		return nil, nil
	}
	s, textual := v.(string)
	if kind == quality.KindText {
		if textual {
			return s, nil
		}
		return quality.FormatValue(v), nil
	}
	if !textual {
		return v, nil
	}
	switch kind {
	case quality.KindInteger:
		return strconv.ParseInt(s, 10, 64)
	case quality.KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			if m, ok := parseMoney(s); ok {
				return m, nil
			}
			return nil, err
		}
		return f, nil
	case quality.KindBoolean:
		// mysql BIT(1) arrives as a single raw byte
		if len(s) == 1 && s[0] <= 1 {
			return s[0] == 1, nil
		}
		return strconv.ParseBool(s)
	case quality.KindTimestamp:
		if ts, ok := formatters.ParseCell(s).(time.Time); ok {
			return ts, nil
		}
		return nil, fmt.Errorf("cannot parse %q as timestamp", s)
	}
	return s, nil
}

// parseMoney reads currency text such as "$1,234.50", "-$3.00" or
// "($3.00)", the way lib/pq returns Postgres money.
func parseMoney(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg, s = true, s[1:len(s)-1]
	}
	for i := 0; i < 2; i++ {
		if rest, ok := strings.CutPrefix(s, "-"); ok {
			neg, s = !neg, rest
		}
		s = strings.TrimLeftFunc(s, func(r rune) bool {
			return !unicode.IsDigit(r) && r != '.' && r != '-'
		})
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || strings.HasPrefix(s, "-") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// kindForDatabaseType maps a driver's column type name to a kind.
func kindForDatabaseType(name string) (quality.Kind, bool) {
	t := strings.ToUpper(strings.TrimSpace(name))
	t = strings.TrimPrefix(t, "UNSIGNED ")
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch t {
	case "INT", "INT2", "INT4", "INT8", "INTEGER", "SMALLINT", "BIGINT", "TINYINT", "MEDIUMINT",
		"SERIAL", "BIGSERIAL", "SMALLSERIAL":
		return quality.KindInteger, true
	case "FLOAT", "FLOAT4", "FLOAT8", "REAL", "DOUBLE", "DOUBLE PRECISION", "NUMERIC", "DECIMAL",
		"MONEY", "SMALLMONEY", "NUMBER", "BINARY_FLOAT", "BINARY_DOUBLE", "IBFLOAT", "IBDOUBLE":
		return quality.KindFloat, true
	case "BOOL", "BOOLEAN", "BIT":
		return quality.KindBoolean, true
	case "DATE", "DATETIME", "DATETIME2", "SMALLDATETIME", "DATETIMEOFFSET", "TIMESTAMPTZ":
		return quality.KindTimestamp, true
	case "TEXT", "VARCHAR", "CHAR", "BPCHAR", "NAME", "CITEXT", "UUID", "JSON", "JSONB", "XML",
		"NVARCHAR", "NCHAR", "NTEXT", "VARCHAR2", "NVARCHAR2", "CLOB", "NCLOB", "ENUM", "SET",
		"UNIQUEIDENTIFIER", "TIME", "TIMETZ", "INTERVAL", "LONGTEXT", "MEDIUMTEXT", "TINYTEXT":
		return quality.KindText, true
	}
	if strings.HasPrefix(t, "TIMESTAMP") {
		return quality.KindTimestamp, true
	}
	return quality.KindText, false
}
