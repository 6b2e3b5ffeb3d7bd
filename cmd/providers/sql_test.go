package providers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSQLProviderFetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	visit := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("facility_type").OfType("VARCHAR", ""),
		sqlmock.NewColumn("visit_date").OfType("DATE", time.Time{}),
		sqlmock.NewColumn("avg_time_spent").OfType("NUMERIC", []byte{}),
		sqlmock.NewColumn("visits").OfType("INT8", int64(0)),
	).
		AddRow("Clinic", visit, []byte("37.50"), int64(8)).
		AddRow("Hospital", visit, nil, int64(9))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT facility_type")).WillReturnRows(rows)

	p := NewSQLProvider(db, &PostgresDialect{}, SQLConfig{}, newTestLogger())
	table, err := p.Fetch(context.Background(), Locator{Query: "SELECT facility_type, visit_date, avg_time_spent, visits FROM agg"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", table.Len())
	}
	wantKinds := []quality.Kind{quality.KindText, quality.KindTimestamp, quality.KindFloat, quality.KindInteger}
	for i, col := range table.Columns() {
		if col.Kind != wantKinds[i] {
			t.Fatalf("column %s kind = %s, want %s", col.Name, col.Kind, wantKinds[i])
		}
	}
	if table.Value(0, 2) != 37.5 {
		t.Fatalf("numeric bytes not parsed: %#v", table.Value(0, 2))
	}
	if table.Value(1, 2) != nil {
		t.Fatalf("expected null, got %#v", table.Value(1, 2))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSQLProviderTableLocator(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "public"."visits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"patient_id", "facility_id"}).AddRow(int64(1), int64(2)))

	p := NewSQLProvider(db, &PostgresDialect{}, SQLConfig{}, newTestLogger())
	table, err := p.Fetch(context.Background(), Locator{Table: "public.visits", Columns: []string{"facility_id"}})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if names := table.ColumnNames(); len(names) != 1 || names[0] != "facility_id" {
		t.Fatalf("projection not applied: %v", names)
	}
	if table.Value(0, 0) != int64(2) {
		t.Fatalf("unexpected value %#v", table.Value(0, 0))
	}
}

func TestSQLProviderRetries(t *testing.T) {
	t.Run("retries connection errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New() error = %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT 1").WillReturnError(errors.New("read tcp 10.0.0.1:5432: connection reset by peer"))
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(int64(1)))

		p := NewSQLProvider(db, &PostgresDialect{}, SQLConfig{MaxRetries: 2}, newTestLogger())
		table, err := p.Fetch(context.Background(), Locator{Query: "SELECT 1"})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if table.Len() != 1 {
			t.Fatalf("expected 1 row, got %d", table.Len())
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New() error = %v", err)
		}
		defer db.Close()

		connErr := errors.New("dial tcp: connection refused")
		mock.ExpectQuery("SELECT 1").WillReturnError(connErr)
		mock.ExpectQuery("SELECT 1").WillReturnError(connErr)

		p := NewSQLProvider(db, &PostgresDialect{}, SQLConfig{MaxRetries: 1}, newTestLogger())
		_, err = p.Fetch(context.Background(), Locator{Query: "SELECT 1"})
		if !errors.Is(err, connErr) {
			t.Fatalf("expected wrapped connection error, got %v", err)
		}
	})

	t.Run("does not retry query errors", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		if err != nil {
			t.Fatalf("sqlmock.New() error = %v", err)
		}
		defer db.Close()

		mock.ExpectQuery("SELECT nope").WillReturnError(errors.New(`column "nope" does not exist`))

		p := NewSQLProvider(db, &PostgresDialect{}, SQLConfig{MaxRetries: 3}, newTestLogger())
		if _, err := p.Fetch(context.Background(), Locator{Query: "SELECT nope"}); err == nil {
			t.Fatal("expected error")
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("unmet expectations: %v", err)
		}
	})
}

func TestKindForDatabaseType(t *testing.T) {
	tests := []struct {
		name  string
		kind  quality.Kind
		known bool
	}{
		{"INT4", quality.KindInteger, true},
		{"unsigned bigint", quality.KindInteger, true},
		{"DECIMAL(10,2)", quality.KindFloat, true},
		{"NUMBER", quality.KindFloat, true},
		{"TIMESTAMP WITH TIME ZONE", quality.KindTimestamp, true},
		{"DATETIME2", quality.KindTimestamp, true},
		{"BOOL", quality.KindBoolean, true},
		{"NVARCHAR", quality.KindText, true},
		{"", quality.KindText, false},
		{"GEOGRAPHY", quality.KindText, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, known := kindForDatabaseType(tt.name)
			if kind != tt.kind || known != tt.known {
				t.Fatalf("kindForDatabaseType(%q) = %s, %v; want %s, %v", tt.name, kind, known, tt.kind, tt.known)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	if !isConnectionError(errors.New("write: broken pipe")) {
		t.Fatal("broken pipe should be a connection error")
	}
	if isConnectionError(errors.New("syntax error at or near SELECT")) {
		t.Fatal("syntax error is not a connection error")
	}
}

func TestConvertSQLValueMoney(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,234.50", 1234.5},
		{"-$3.00", -3},
		{"($3.00)", -3},
		{"$-3.00", -3},
		{"12.25", 12.25},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := convertSQLValue(quality.KindFloat, []byte(tt.in))
			if err != nil {
				t.Fatalf("convertSQLValue(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("convertSQLValue(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	t.Run("not a number", func(t *testing.T) {
		if _, err := convertSQLValue(quality.KindFloat, "$abc"); err == nil {
			t.Fatal("expected error for non-numeric money text")
		}
	})
}
