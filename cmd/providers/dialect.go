package providers

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	go_ora "github.com/sijms/go-ora/v2"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var ErrUnsupportedDriver = errors.New("unsupported database driver")

// ConnConfig holds the connection settings shared by every dialect.
type ConnConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// Dialect hides the per-database differences a provider cares about.
type Dialect interface {
	// DriverName is the database/sql driver registration name.
	DriverName() string
	DefaultPort() int
	DSN(cfg ConnConfig) string
	QuoteIdentifier(name string) string

	// Placeholder returns the bind parameter for the zero-based index: ?, $1, @p1, :1.
	Placeholder(index int) string
	// ColumnType is the DDL type used to store a kind.
	ColumnType(kind quality.Kind) string
	// CreateTableQuery creates table unless it already exists. Each
	// definition is an already quoted column name followed by its type.
	CreateTableQuery(table string, definitions []string) string
}

// GetDialect returns the dialect for a driver name or one of its aliases.
func GetDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pg", "":
		return &PostgresDialect{}, nil
	case "mysql", "mariadb":
		return &MySQLDialect{}, nil
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	case "oracle":
		return &OracleDialect{}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
}

var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MySQLDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
var _ Dialect = (*OracleDialect)(nil)

func port(cfg ConnConfig, d Dialect) int {
	if cfg.Port > 0 {
		return cfg.Port
	}
	return d.DefaultPort()
}

// QuoteQualified quotes each dot-separated part of a table name.
func QuoteQualified(d Dialect, name string) string { return quoteQualified(d, name) }

// Placeholders joins count bind parameters, as used in VALUES lists.
func Placeholders(d Dialect, count int) string {
	out := make([]string, count)
	for i := range out {
		out[i] = d.Placeholder(i)
	}
	return strings.Join(out, ", ")
}

func createIfNotExists(d Dialect, table string, definitions []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteQualified(d, table), strings.Join(definitions, ", "))
}

// quoteQualified quotes each dot-separated part of a table name.
func quoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string { return "postgres" }

func (d *PostgresDialect) DefaultPort() int { return 5432 }

func (d *PostgresDialect) DSN(cfg ConnConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, port(cfg, d), cfg.User, quoteConnValue(cfg.Password), cfg.Name, sslMode)
}

// quoteConnValue quotes a libpq key/value when it holds spaces or quotes.
func quoteConnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	return "'" + strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v) + "'"
}

func (d *PostgresDialect) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (d *PostgresDialect) Placeholder(index int) string { return fmt.Sprintf("$%d", index+1) }

func (d *PostgresDialect) ColumnType(kind quality.Kind) string {
	switch kind {
	case quality.KindInteger:
		return "BIGINT"
	case quality.KindFloat:
		return "DOUBLE PRECISION"
	case quality.KindBoolean:
		return "BOOLEAN"
	case quality.KindTimestamp:
		return "TIMESTAMP"
	}
	return "TEXT"
}

func (d *PostgresDialect) CreateTableQuery(table string, definitions []string) string {
	return createIfNotExists(d, table, definitions)
}

type MySQLDialect struct{}

func (d *MySQLDialect) DriverName() string { return "mysql" }

func (d *MySQLDialect) DefaultPort() int { return 3306 }

func (d *MySQLDialect) DSN(cfg ConnConfig) string {
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port(cfg, d)))
	c.DBName = cfg.Name
	c.ParseTime = true
	switch cfg.SSLMode {
	case "require":
		c.TLSConfig = "skip-verify"
	case "verify-ca", "verify-full":
		c.TLSConfig = "true"
	}
	return c.FormatDSN()
}

func (d *MySQLDialect) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *MySQLDialect) Placeholder(int) string { return "?" }

func (d *MySQLDialect) ColumnType(kind quality.Kind) string {
	switch kind {
	case quality.KindInteger:
		return "BIGINT"
	case quality.KindFloat:
		return "DOUBLE"
	case quality.KindBoolean:
		return "BOOLEAN"
	case quality.KindTimestamp:
		return "DATETIME(6)"
	}
	return "TEXT"
}

func (d *MySQLDialect) CreateTableQuery(table string, definitions []string) string {
	return createIfNotExists(d, table, definitions)
}

type MSSQLDialect struct{}

func (d *MSSQLDialect) DriverName() string { return "sqlserver" }

func (d *MSSQLDialect) DefaultPort() int { return 1433 }

func (d *MSSQLDialect) DSN(cfg ConnConfig) string {
	query := url.Values{}
	query.Set("database", cfg.Name)
	switch cfg.SSLMode {
	case "disable":
		query.Set("encrypt", "disable")
	case "require":
		query.Set("encrypt", "true")
		query.Set("TrustServerCertificate", "true")
	case "verify-ca", "verify-full":
		query.Set("encrypt", "true")
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port(cfg, d))),
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (d *MSSQLDialect) QuoteIdentifier(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (d *MSSQLDialect) Placeholder(index int) string { return fmt.Sprintf("@p%d", index+1) }

func (d *MSSQLDialect) ColumnType(kind quality.Kind) string {
	switch kind {
	case quality.KindInteger:
		return "BIGINT"
	case quality.KindFloat:
		return "FLOAT"
	case quality.KindBoolean:
		return "BIT"
	case quality.KindTimestamp:
		return "DATETIME2"
	}
	return "NVARCHAR(MAX)"
}

// CreateTableQuery guards on OBJECT_ID; T-SQL has no CREATE TABLE IF NOT EXISTS.
func (d *MSSQLDialect) CreateTableQuery(table string, definitions []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(table, "'", "''"), quoteQualified(d, table), strings.Join(definitions, ", "))
}

type OracleDialect struct{}

func (d *OracleDialect) DriverName() string { return "oracle" }

func (d *OracleDialect) DefaultPort() int { return 1521 }

// DSN treats the database name as the Oracle service name.
func (d *OracleDialect) DSN(cfg ConnConfig) string {
	var options map[string]string
	if cfg.SSLMode != "" && cfg.SSLMode != "disable" {
		options = map[string]string{"SSL": "true"}
		if cfg.SSLMode == "require" {
			options["SSL VERIFY"] = "false"
		}
	}
	return go_ora.BuildUrl(cfg.Host, port(cfg, d), cfg.Name, cfg.User, cfg.Password, options)
}

func (d *OracleDialect) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

func (d *OracleDialect) Placeholder(index int) string { return fmt.Sprintf(":%d", index+1) }

func (d *OracleDialect) ColumnType(kind quality.Kind) string {
	switch kind {
	case quality.KindInteger:
		return "NUMBER(19)"
	case quality.KindFloat:
		return "BINARY_DOUBLE"
	case quality.KindBoolean:
		return "NUMBER(1)"
	case quality.KindTimestamp:
		return "TIMESTAMP"
	}
	return "VARCHAR2(4000)"
}

// CreateTableQuery swallows ORA-00955 (name already used by an existing object).
func (d *OracleDialect) CreateTableQuery(table string, definitions []string) string {
	ddl := fmt.Sprintf("CREATE TABLE %s (%s)", quoteQualified(d, table), strings.Join(definitions, ", "))
	return fmt.Sprintf("BEGIN EXECUTE IMMEDIATE '%s'; EXCEPTION WHEN OTHERS THEN IF SQLCODE != -955 THEN RAISE; END IF; END;",
		strings.ReplaceAll(ddl, "'", "''"))
}
