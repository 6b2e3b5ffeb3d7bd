package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DanyaHDanny/tafordqe/cmd/generator"
	"github.com/DanyaHDanny/tafordqe/cmd/quality"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the synthetic clinic dataset and its aggregates",
	Long: `Generate patients, facilities and visits, derive the per facility type
aggregates and export all of them under the output directory. Aggregates
with a date are partitioned by it in hive layout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		generateBindings.bind(cmd)
		dataBindings.bind(cmd)
		cfg := generateConfigFromViper()
		cleanup := initLogger(cfg.Debug, cfg.LogFormat, cfg.SeqURL)
		defer cleanup()
		return runGenerate(cmd.Context(), cfg)
	},
}

var generateBindings = flagBindings{
	"generate.output_dir":        "output-dir",
	"generate.format":            "format",
	"generate.compression":       "compression",
	"generate.compression_level": "compression-level",
	"generate.path_template":     "path-template",
}

func init() {
	f := generateCmd.Flags()
	f.String("output-dir", "", "directory the dataset is written to")
	f.String("format", "parquet", "output format: jsonl, csv, parquet")
	f.String("compression", "zstd", "compression type: zstd, lz4, gzip, none")
	f.Int("compression-level", 0, "compression level (0 = codec default)")
	f.String("path-template", generator.DefaultPathTemplate, "partition directory template: {table}, {column}, {YYYY}, {MM}, {DD}, {HH}")
	addDataFlags(generateCmd)
}

func generateConfigFromViper() *GenerateConfig {
	return &GenerateConfig{
		Debug:            viper.GetBool("debug"),
		LogFormat:        viper.GetString("log_format"),
		SeqURL:           viper.GetString("seq_url"),
		OutputDir:        viper.GetString("generate.output_dir"),
		Format:           viper.GetString("generate.format"),
		Compression:      viper.GetString("generate.compression"),
		CompressionLevel: viper.GetInt("generate.compression_level"),
		PathTemplate:     viper.GetString("generate.path_template"),
		DataConfig:       dataConfigFromViper(),
	}
}

type exportJob struct {
	name            string
	table           *quality.Table
	partitionColumn string
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	genCfg, err := cfg.GeneratorConfig()
	if err != nil {
		return err
	}

	logger.Info("Generating dataset", "patients", genCfg.Patients,
		"start", genCfg.StartDate.Format(dateLayout), "end", genCfg.EndDate.Format(dateLayout))
	d, err := generator.Generate(genCfg)
	if err != nil {
		return err
	}
	avg, err := generator.FacilityTypeAvgTimeSpent(d)
	if err != nil {
		return err
	}
	sum, err := generator.PatientSumTreatmentCost(d)
	if err != nil {
		return err
	}

	jobs := []exportJob{
		{name: "patients", table: d.Patients},
		{name: "facilities", table: d.Facilities},
		{name: "visits", table: d.Visits},
		{name: "facility_type_avg_time_spent_per_visit_date", table: avg, partitionColumn: "visit_date"},
		{name: "patient_sum_treatment_cost_per_facility_type", table: sum},
	}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts := cfg.ExportOptions()
		opts.PartitionColumn = job.partitionColumn
		files, err := generator.Export(cfg.OutputDir, job.name, job.table, opts)
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", job.name, err)
		}
		logger.Info("Exported table", "table", job.name, "rows", job.table.Len(), "files", len(files))
		for _, f := range files {
			logger.Debug("Wrote file", "path", f)
		}
	}
	logger.Info("✅ Dataset generated", "dir", cfg.OutputDir)
	return nil
}
