package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/DanyaHDanny/tafordqe/cmd/generator"
	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

// exportFixture generates the dataset into dir and also writes the average
// aggregate as a single CSV to compare the partitioned export against.
func exportFixture(t *testing.T, dir string) {
	t.Helper()
	cfg := &GenerateConfig{OutputDir: dir, Format: "parquet", Compression: "zstd", DataConfig: DataConfig{Seed: 7}}
	if err := runGenerate(context.Background(), cfg); err != nil {
		t.Fatalf("runGenerate() error = %v", err)
	}

	genCfg, err := cfg.GeneratorConfig()
	if err != nil {
		t.Fatalf("GeneratorConfig() error = %v", err)
	}
	d, err := generator.Generate(genCfg)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	avg, err := generator.FacilityTypeAvgTimeSpent(d)
	if err != nil {
		t.Fatalf("FacilityTypeAvgTimeSpent() error = %v", err)
	}
	if _, err := generator.Export(filepath.Join(dir, "expected"), "avg", avg, generator.ExportOptions{Format: "csv", Compression: "none"}); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
}

func writeSuite(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "suite.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunCheck(t *testing.T) {
	dir := t.TempDir()
	exportFixture(t, dir)

	passing := fmt.Sprintf(`
version: 1
name: generated exports
scenarios:
  - name: avg_time_spent
    source:
      path: %s
      columns: [facility_type, visit_date, avg_time_spent]
    target:
      path: %s
      include_subfolders: true
      partition_columns: true
    checks:
      - type: count
      - type: completeness
      - type: not_empty
        on: both
      - type: duplicates
        columns: [facility_type, visit_date]
  - name: visits
    target:
      path: %s
    checks:
      - type: not_null
`, filepath.Join(dir, "expected", "avg", "avg.csv"),
		filepath.Join(dir, "facility_type_avg_time_spent_per_visit_date"),
		filepath.Join(dir, "visits"))

	t.Run("passing suite", func(t *testing.T) {
		cfg := validCheckConfig()
		cfg.Suite = writeSuite(t, t.TempDir(), passing)
		cfg.OutputFormat = ReportFormatJSON

		var out bytes.Buffer
		if err := runCheck(context.Background(), cfg, &out); err != nil {
			t.Fatalf("runCheck() error = %v\n%s", err, out.String())
		}
		var decoded struct {
			RunID   string        `json:"run_id"`
			Summary suite.Summary `json:"summary"`
		}
		if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
			t.Fatalf("report is not JSON: %v", err)
		}
		if decoded.RunID == "" || decoded.Summary.Checks != 6 || decoded.Summary.Passed != 6 {
			t.Fatalf("unexpected summary %+v", decoded.Summary)
		}
	})

	t.Run("failing suite", func(t *testing.T) {
		cfg := validCheckConfig()
		cfg.Suite = writeSuite(t, t.TempDir(), fmt.Sprintf(`
name: failing
scenarios:
  - name: visits must be empty
    target:
      path: %s
    checks:
      - type: empty
`, filepath.Join(dir, "visits")))
		cfg.OutputFile = filepath.Join(t.TempDir(), "report.txt")

		err := runCheck(context.Background(), cfg, &bytes.Buffer{})
		if !errors.Is(err, ErrChecksFailed) {
			t.Fatalf("expected ErrChecksFailed, got %v", err)
		}
		report, readErr := os.ReadFile(cfg.OutputFile)
		if readErr != nil {
			t.Fatalf("report file not written: %v", readErr)
		}
		if !bytes.Contains(report, []byte("dataset is not empty")) {
			t.Fatalf("report should carry the failure message:\n%s", report)
		}
	})

	t.Run("missing suite", func(t *testing.T) {
		cfg := validCheckConfig()
		cfg.Suite = ""
		if err := runCheck(context.Background(), cfg, &bytes.Buffer{}); !errors.Is(err, ErrSuiteRequired) {
			t.Fatalf("expected ErrSuiteRequired, got %v", err)
		}
	})
}
