package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DanyaHDanny/tafordqe/cmd/providers"
	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

// ErrChecksFailed is returned when any check failed or errored.
var ErrChecksFailed = errors.New("data quality checks failed")

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a data quality suite",
	Long: `Run every scenario of a suite file and report the result of each check.
Exits with status 1 when any check fails or cannot be evaluated.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		checkBindings.bind(cmd)
		databaseBindings.bind(cmd)
		cfg := checkConfigFromViper()
		cleanup := initLogger(cfg.Debug, cfg.LogFormat, cfg.SeqURL)
		defer cleanup()
		return runCheck(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

var checkBindings = flagBindings{
	"suite":               "suite",
	"workers":             "workers",
	"float_tolerance":     "float-tolerance",
	"output_format":       "output-format",
	"output_file":         "output-file",
	"progress":            "progress",
	"metrics.pushgateway": "pushgateway-url",
	"metrics.job":         "metrics-job",
	"s3.endpoint":         "s3-endpoint",
	"s3.access_key":       "s3-access-key",
	"s3.secret_key":       "s3-secret-key",
	"s3.region":           "s3-region",
}

func init() {
	f := checkCmd.Flags()
	f.String("suite", "", "suite file (YAML)")
	f.Int("workers", 4, "number of scenarios run in parallel")
	f.Float64("float-tolerance", 0, "default absolute tolerance for float comparison (0 = exact)")
	f.String("output-format", ReportFormatText, "report format: text, json")
	f.String("output-file", "", "write the report to this file instead of stdout")
	f.Bool("progress", false, "show a progress display while the suite runs")
	f.String("pushgateway-url", "", "push run metrics to this Prometheus pushgateway")
	f.String("metrics-job", "dqe", "pushgateway job name")

	addDatabaseFlags(checkCmd)

	f.String("s3-endpoint", "", "S3-compatible endpoint URL")
	f.String("s3-access-key", "", "S3 access key")
	f.String("s3-secret-key", "", "S3 secret key")
	f.String("s3-region", regionAuto, "S3 region")
}

func checkConfigFromViper() *Config {
	return &Config{
		Debug:          viper.GetBool("debug"),
		LogFormat:      viper.GetString("log_format"),
		SeqURL:         viper.GetString("seq_url"),
		Suite:          viper.GetString("suite"),
		Workers:        viper.GetInt("workers"),
		FloatTolerance: viper.GetFloat64("float_tolerance"),
		OutputFormat:   viper.GetString("output_format"),
		OutputFile:     viper.GetString("output_file"),
		Progress:       viper.GetBool("progress"),
		Database:       databaseConfigFromViper(),
		S3: S3Config{
			Endpoint:  viper.GetString("s3.endpoint"),
			AccessKey: viper.GetString("s3.access_key"),
			SecretKey: viper.GetString("s3.secret_key"),
			Region:    viper.GetString("s3.region"),
		},
		Metrics: MetricsConfig{
			PushgatewayURL: viper.GetString("metrics.pushgateway"),
			Job:            viper.GetString("metrics.job"),
		},
	}
}

// runCheck loads the suite, connects only the backends it uses, runs it and
// writes the report.
func runCheck(ctx context.Context, cfg *Config, stdout io.Writer) error {
	if cfg.Suite == "" {
		return ErrSuiteRequired
	}
	s, err := suite.Load(cfg.Suite)
	if err != nil {
		return err
	}
	usage := s.Usage()

	logger.Debug("Validating configuration...")
	if err := cfg.Validate(usage); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	router, closeFn, err := buildRouter(ctx, cfg, usage)
	if err != nil {
		return err
	}
	defer closeFn()

	metrics := newRunMetrics()
	build := func(extra suite.Observer) *suite.Runner {
		opts := []suite.RunnerOption{
			suite.WithWorkers(cfg.Workers),
			suite.WithFloatTolerance(cfg.FloatTolerance),
			suite.WithObserver(metrics),
		}
		if extra != nil {
			opts = append(opts, suite.WithObserver(extra))
		}
		return suite.NewRunner(router, logger, opts...)
	}

	var report *suite.Report
	if cfg.Progress {
		report, err = runWithProgress(ctx, s, build)
	} else {
		report, err = build(nil).Run(ctx, s)
	}
	if err != nil {
		return err
	}

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.push(ctx, cfg.Metrics.PushgatewayURL, cfg.Metrics.Job, report.RunID); err != nil {
			logger.Warn("could not push metrics", "error", err)
		}
	}

	if err := emitReport(cfg, report, stdout); err != nil {
		return err
	}
	if cfg.Progress {
		logger.Info(fmt.Sprintf("Suite finished: %s", summaryLine(report)))
	}
	if report.Failed() {
		return ErrChecksFailed
	}
	return nil
}

func emitReport(cfg *Config, report *suite.Report, stdout io.Writer) error {
	if cfg.OutputFile == "" {
		return writeReport(stdout, report, cfg.OutputFormat)
	}
	f, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := writeReport(f, report, cfg.OutputFormat); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	logger.Info("Report written", "path", cfg.OutputFile)
	return nil
}

// buildRouter wires a provider for each backend the suite references.
func buildRouter(ctx context.Context, cfg *Config, usage suite.Usage) (*providers.Router, func(), error) {
	router := &providers.Router{}
	closeFn := func() {}

	if usage.Files {
		router.Files = providers.NewFileProvider(logger)
	}
	if usage.S3 {
		client, err := providers.NewS3Client(cfg.S3.ProviderConfig())
		if err != nil {
			return nil, closeFn, err
		}
		router.S3 = providers.NewS3Provider(client, logger)
	}
	if usage.SQL {
		logger.Debug("Connecting to database", "driver", cfg.Database.Driver, "host", cfg.Database.Host)
		db, dialect, err := providers.Open(ctx, cfg.Database.ConnConfig())
		if err != nil {
			return nil, closeFn, err
		}
		closeFn = func() { db.Close() }
		router.SQL = providers.NewSQLProvider(db, dialect, cfg.Database.SQLConfig(), logger)
	}
	return router, closeFn, nil
}
