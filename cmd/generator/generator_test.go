package generator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

func seededConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "default is valid", modify: func(*Config) {}},
		{name: "no patients", modify: func(c *Config) { c.Patients = 0 }, wantErr: ErrPatientsRequired},
		{name: "no facility types", modify: func(c *Config) { c.FacilityTypes = nil }, wantErr: ErrFacilityTypesRequired},
		{name: "reversed dates", modify: func(c *Config) { c.StartDate = c.EndDate.AddDate(0, 0, 1) }, wantErr: ErrInvalidDateRange},
		{name: "reversed visits", modify: func(c *Config) { c.MinVisitsPerDay = 5; c.MaxVisitsPerDay = 2 }, wantErr: ErrInvalidVisitRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	cfg := seededConfig()
	d, err := Generate(cfg)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if d.Patients.Len() != cfg.Patients {
		t.Fatalf("patients = %d, want %d", d.Patients.Len(), cfg.Patients)
	}
	if d.Facilities.Len() != len(cfg.FacilityTypes) {
		t.Fatalf("facilities = %d, want %d", d.Facilities.Len(), len(cfg.FacilityTypes))
	}
	days := 2
	if n := d.Visits.Len(); n < days*cfg.MinVisitsPerDay || n > days*cfg.MaxVisitsPerDay {
		t.Fatalf("visits = %d, outside [%d, %d]", n, days*cfg.MinVisitsPerDay, days*cfg.MaxVisitsPerDay)
	}

	for _, err := range []error{
		quality.CheckDuplicates(d.Patients, "patient_id"),
		quality.CheckDuplicates(d.Facilities, "facility_id"),
		quality.CheckNotNullValues(d.Visits),
	} {
		if err != nil {
			t.Fatalf("generated data failed a check: %v", err)
		}
	}

	_, tsCol, _ := d.Visits.Column("visit_timestamp")
	_, costCol, _ := d.Visits.Column("treatment_cost")
	_, durCol, _ := d.Visits.Column("duration_minutes")
	end := cfg.EndDate.AddDate(0, 0, 1)
	for i := 0; i < d.Visits.Len(); i++ {
		ts := d.Visits.Value(i, tsCol).(time.Time)
		if ts.Before(cfg.StartDate) || !ts.Before(end) {
			t.Fatalf("visit %d at %v outside range", i, ts)
		}
		if cost := d.Visits.Value(i, costCol).(float64); cost < minTreatmentCost || cost > maxTreatmentCost {
			t.Fatalf("visit %d cost %v out of range", i, cost)
		}
		if dur := d.Visits.Value(i, durCol).(int64); dur < minDuration || dur > maxDuration {
			t.Fatalf("visit %d duration %d out of range", i, dur)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	a, err := Generate(seededConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	b, err := Generate(seededConfig())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, pair := range [][2]*quality.Table{{a.Patients, b.Patients}, {a.Facilities, b.Facilities}, {a.Visits, b.Visits}} {
		if err := quality.CheckDataCompleteness(pair[0], pair[1]); err != nil {
			t.Fatalf("same seed produced different data: %v", err)
		}
	}
}

func fixedDataset(t *testing.T) *Dataset {
	t.Helper()
	patients, _ := quality.NewTable(
		quality.Column{Name: "patient_id", Kind: quality.KindInteger},
		quality.Column{Name: "first_name", Kind: quality.KindText},
		quality.Column{Name: "last_name", Kind: quality.KindText},
	)
	_ = patients.Append(1, "Ada", "Lovelace")
	_ = patients.Append(2, "Alan", "Turing")

	facilities, _ := quality.NewTable(
		quality.Column{Name: "facility_id", Kind: quality.KindInteger},
		quality.Column{Name: "facility_type", Kind: quality.KindText},
	)
	_ = facilities.Append(1, "Hospital")
	_ = facilities.Append(2, "Clinic")

	visits, _ := quality.NewTable(
		quality.Column{Name: "patient_id", Kind: quality.KindInteger},
		quality.Column{Name: "facility_id", Kind: quality.KindInteger},
		quality.Column{Name: "visit_timestamp", Kind: quality.KindTimestamp},
		quality.Column{Name: "treatment_cost", Kind: quality.KindFloat},
		quality.Column{Name: "duration_minutes", Kind: quality.KindInteger},
	)
	day1 := time.Date(2025, 4, 1, 9, 30, 0, 0, time.UTC)
	day2 := time.Date(2025, 4, 2, 14, 0, 0, 0, time.UTC)
	_ = visits.Append(1, 1, day1, 100.10, 20)
	_ = visits.Append(1, 1, day1.Add(time.Hour), 200.20, 25)
	_ = visits.Append(2, 1, day1.Add(2*time.Hour), 0.10, 30)
	_ = visits.Append(2, 2, day2, 50.0, 15)
	return &Dataset{Patients: patients, Facilities: facilities, Visits: visits}
}

func TestFacilityTypeAvgTimeSpent(t *testing.T) {
	got, err := FacilityTypeAvgTimeSpent(fixedDataset(t))
	if err != nil {
		t.Fatalf("FacilityTypeAvgTimeSpent() error = %v", err)
	}
	want, _ := quality.NewTable(
		quality.Column{Name: "facility_type", Kind: quality.KindText},
		quality.Column{Name: "visit_date", Kind: quality.KindTimestamp},
		quality.Column{Name: "avg_time_spent", Kind: quality.KindFloat},
	)
	_ = want.Append("Clinic", time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), 15.0)
	_ = want.Append("Hospital", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 25.0)
	if err := quality.CheckDataCompleteness(want, got); err != nil {
		t.Fatalf("unexpected aggregate: %v", err)
	}
}

func TestPatientSumTreatmentCost(t *testing.T) {
	got, err := PatientSumTreatmentCost(fixedDataset(t))
	if err != nil {
		t.Fatalf("PatientSumTreatmentCost() error = %v", err)
	}
	want, _ := quality.NewTable(
		quality.Column{Name: "facility_type", Kind: quality.KindText},
		quality.Column{Name: "full_name", Kind: quality.KindText},
		quality.Column{Name: "sum_treatment_cost", Kind: quality.KindFloat},
	)
	_ = want.Append("Clinic", "Alan Turing", 50.0)
	_ = want.Append("Hospital", "Ada Lovelace", 300.3)
	_ = want.Append("Hospital", "Alan Turing", 0.1)
	if err := quality.CheckDataCompleteness(want, got); err != nil {
		t.Fatalf("unexpected aggregate: %v", err)
	}
}

func TestPathTemplate(t *testing.T) {
	ts := time.Date(2025, 4, 1, 13, 5, 0, 0, time.UTC)
	tests := []struct {
		template string
		want     string
	}{
		{template: "", want: "visits/visit_date=2025-04-01"},
		{template: "{table}/year={YYYY}/month={MM}/hour={HH}", want: "visits/year=2025/month=04/hour=13"},
	}
	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if got := NewPathTemplate(tt.template).Generate("visits", "visit_date", ts); got != tt.want {
				t.Fatalf("Generate() = %q, want %q", got, tt.want)
			}
		})
	}

	if got := GenerateFilename("visits", ts, GranularityMonthly, ".csv", ".zst"); got != "visits-2025-04.csv.zst" {
		t.Fatalf("GenerateFilename() = %q", got)
	}
	if got := PeriodStart(ts, GranularityHourly); !got.Equal(time.Date(2025, 4, 1, 13, 0, 0, 0, time.UTC)) {
		t.Fatalf("PeriodStart() = %v", got)
	}
}

func TestExport(t *testing.T) {
	avg, err := FacilityTypeAvgTimeSpent(fixedDataset(t))
	if err != nil {
		t.Fatalf("FacilityTypeAvgTimeSpent() error = %v", err)
	}

	t.Run("partitioned parquet", func(t *testing.T) {
		dir := t.TempDir()
		files, err := Export(dir, "avg", avg, ExportOptions{Format: "parquet", Compression: "zstd", PartitionColumn: "visit_date"})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %v", files)
		}
		if !strings.Contains(filepath.ToSlash(files[0]), "avg/visit_date=2025-04-01/") {
			t.Fatalf("unexpected partition path %s", files[0])
		}

		f, err := os.Open(files[0])
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer f.Close()
		r, _ := formatters.NewReader("parquet", f)
		part, err := r.ReadTable()
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		if _, _, ok := part.Column("visit_date"); ok {
			t.Fatalf("partition column should be dropped from files")
		}
		if part.Len() != 1 {
			t.Fatalf("partition rows = %d, want 1", part.Len())
		}
	})

	t.Run("single compressed csv", func(t *testing.T) {
		dir := t.TempDir()
		files, err := Export(dir, "avg", avg, ExportOptions{Format: "csv", Compression: "gzip"})
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if want := filepath.Join(dir, "avg", "avg.csv.gz"); len(files) != 1 || files[0] != want {
			t.Fatalf("files = %v, want %s", files, want)
		}
	})

	t.Run("partition column must be a timestamp", func(t *testing.T) {
		_, err := Export(t.TempDir(), "avg", avg, ExportOptions{PartitionColumn: "facility_type"})
		if !errors.Is(err, ErrPartitionColumnKind) {
			t.Fatalf("expected ErrPartitionColumnKind, got %v", err)
		}
	})

	t.Run("unknown granularity", func(t *testing.T) {
		_, err := Export(t.TempDir(), "avg", avg, ExportOptions{PartitionColumn: "visit_date", Granularity: "weekly"})
		if !errors.Is(err, ErrInvalidGranularity) {
			t.Fatalf("expected ErrInvalidGranularity, got %v", err)
		}
	})
}
