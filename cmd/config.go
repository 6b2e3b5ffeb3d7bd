package cmd

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/DanyaHDanny/tafordqe/cmd/compressors"
	"github.com/DanyaHDanny/tafordqe/cmd/formatters"
	"github.com/DanyaHDanny/tafordqe/cmd/generator"
	"github.com/DanyaHDanny/tafordqe/cmd/providers"
	"github.com/DanyaHDanny/tafordqe/cmd/suite"
)

// Static errors for configuration validation
var (
	ErrSuiteRequired           = errors.New("suite file is required")
	ErrDatabaseDriverInvalid   = errors.New("database driver must be one of: postgres, mysql, sqlserver, oracle")
	ErrDatabaseUserRequired    = errors.New("database user is required")
	ErrDatabaseNameRequired    = errors.New("database name is required")
	ErrDatabasePortInvalid     = errors.New("database port must be between 1 and 65535")
	ErrStatementTimeoutInvalid = errors.New("database statement timeout must be >= 0")
	ErrMaxRetriesInvalid       = errors.New("database max retries must be >= 0")
	ErrRetryDelayInvalid       = errors.New("database retry delay must be >= 0")
	ErrS3RegionInvalid         = errors.New("S3 region contains invalid characters or is too long")
	ErrS3SecretKeyRequired     = errors.New("S3 secret key is required when an access key is set")
	ErrWorkersMinimum          = errors.New("workers must be at least 1")
	ErrWorkersMaximum          = errors.New("workers must not exceed 1000")
	ErrFloatToleranceInvalid   = errors.New("float tolerance must be >= 0")
	ErrReportFormatInvalid     = errors.New("output format must be one of: text, json")
	ErrLogFormatInvalid        = errors.New("log format must be one of: text, logfmt, json")
	ErrMetricsJobRequired      = errors.New("metrics job name is required when a pushgateway is set")

	ErrOutputDirRequired       = errors.New("output directory is required")
	ErrOutputFormatInvalid     = errors.New("output format must be one of: jsonl, csv, parquet")
	ErrCompressionInvalid      = errors.New("compression must be one of: zstd, lz4, gzip, none")
	ErrCompressionLevelInvalid = errors.New("compression level must be between 1 and 22 (zstd), 1-9 (lz4/gzip)")
	ErrPathTemplateInvalid     = errors.New("path template must contain {table} placeholder")
	ErrStartDateFormatInvalid  = errors.New("invalid start date format")
	ErrEndDateFormatInvalid    = errors.New("invalid end date format")

	ErrSourcePrefixInvalid    = errors.New("source prefix must be letters, digits and underscores, not starting with a digit")
	ErrDateScopeFormatInvalid = errors.New("invalid date scope format")
)

const (
	regionAuto = "auto"
	dateLayout = "2006-01-02"

	ReportFormatText = "text"
	ReportFormatJSON = "json"
)

// Config drives the check command.
type Config struct {
	Debug          bool
	LogFormat      string
	SeqURL         string
	Suite          string
	Workers        int
	FloatTolerance float64
	OutputFormat   string
	OutputFile     string
	Progress       bool
	Database       DatabaseConfig
	S3             S3Config
	Metrics        MetricsConfig
}

type DatabaseConfig struct {
	Driver           string
	Host             string
	Port             int // 0 picks the driver's default port
	User             string
	Password         string
	Name             string
	SSLMode          string
	StatementTimeout int // Statement timeout in seconds (0 = no timeout)
	MaxRetries       int
	RetryDelay       int // seconds
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
}

type MetricsConfig struct {
	PushgatewayURL string
	Job            string
}

// ConnConfig converts the flags into a provider connection config.
func (d DatabaseConfig) ConnConfig() providers.ConnConfig {
	return providers.ConnConfig{
		Driver:   d.Driver,
		Host:     d.Host,
		Port:     d.Port,
		User:     d.User,
		Password: d.Password,
		Name:     d.Name,
		SSLMode:  d.SSLMode,
	}
}

func (d DatabaseConfig) SQLConfig() providers.SQLConfig {
	return providers.SQLConfig{
		StatementTimeout: time.Duration(d.StatementTimeout) * time.Second,
		MaxRetries:       d.MaxRetries,
		RetryDelay:       time.Duration(d.RetryDelay) * time.Second,
	}
}

func (s S3Config) ProviderConfig() providers.S3Config {
	region := s.Region
	if region == "" || region == regionAuto {
		region = "us-east-1"
	}
	return providers.S3Config{
		Endpoint:  s.Endpoint,
		Region:    region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
	}
}

// isValidRegion validates that an S3 region is reasonable
func isValidRegion(region string) bool {
	if region == "" || len(region) > 50 {
		return false
	}
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, region)
	return matched
}

func isValidLogFormat(format string) bool {
	switch format {
	case "", "text", "logfmt", "json":
		return true
	}
	return false
}

// Validate checks the settings common to every suite. Backend settings are
// checked only for the backends the suite uses.
func (c *Config) Validate(usage suite.Usage) error {
	if c.Suite == "" {
		return ErrSuiteRequired
	}
	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("%w: '%s'", ErrLogFormatInvalid, c.LogFormat)
	}
	if c.Workers < 1 {
		return ErrWorkersMinimum
	}
	if c.Workers > 1000 {
		return fmt.Errorf("%w, got %d", ErrWorkersMaximum, c.Workers)
	}
	if c.FloatTolerance < 0 {
		return fmt.Errorf("%w, got %g", ErrFloatToleranceInvalid, c.FloatTolerance)
	}
	if c.OutputFormat != ReportFormatText && c.OutputFormat != ReportFormatJSON {
		return fmt.Errorf("%w: '%s'", ErrReportFormatInvalid, c.OutputFormat)
	}
	if c.Metrics.PushgatewayURL != "" && c.Metrics.Job == "" {
		return ErrMetricsJobRequired
	}

	if usage.SQL {
		if err := c.Database.Validate(); err != nil {
			return err
		}
	}
	if usage.S3 {
		if err := c.S3.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d DatabaseConfig) Validate() error {
	if _, err := providers.GetDialect(d.Driver); err != nil {
		return fmt.Errorf("%w: '%s'", ErrDatabaseDriverInvalid, d.Driver)
	}
	if d.User == "" {
		return ErrDatabaseUserRequired
	}
	if d.Name == "" {
		return ErrDatabaseNameRequired
	}
	if d.Port != 0 && (d.Port < 1 || d.Port > 65535) {
		return fmt.Errorf("%w, got %d", ErrDatabasePortInvalid, d.Port)
	}
	if d.StatementTimeout < 0 {
		return fmt.Errorf("%w, got %d", ErrStatementTimeoutInvalid, d.StatementTimeout)
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("%w, got %d", ErrMaxRetriesInvalid, d.MaxRetries)
	}
	if d.RetryDelay < 0 {
		return fmt.Errorf("%w, got %d", ErrRetryDelayInvalid, d.RetryDelay)
	}
	return nil
}

func (s S3Config) Validate() error {
	if s.AccessKey != "" && s.SecretKey == "" {
		return ErrS3SecretKeyRequired
	}
	if s.Region != "" && s.Region != regionAuto && !isValidRegion(s.Region) {
		return fmt.Errorf("%w: %s", ErrS3RegionInvalid, s.Region)
	}
	return nil
}

// DataConfig holds the synthetic dataset flags shared by generate and load.
type DataConfig struct {
	Patients  int
	StartDate string
	EndDate   string
	Seed      int64
	MinVisits int
	MaxVisits int
}

// GenerateConfig drives the generate command.
type GenerateConfig struct {
	Debug            bool
	LogFormat        string
	SeqURL           string
	OutputDir        string
	Format           string
	Compression      string
	CompressionLevel int
	PathTemplate     string
	DataConfig
}

// LoadConfig drives the load command.
type LoadConfig struct {
	Debug        bool
	LogFormat    string
	SeqURL       string
	Database     DatabaseConfig
	SourcePrefix string
	Normalize    bool
	DateScope    string // YYYY-MM-DD, empty replaces every normalized visit
	DataConfig
}

// isValidCompressionLevel validates compression level based on compression type.
// Zero always selects the codec default.
func isValidCompressionLevel(compression string, level int) bool {
	if level == 0 {
		return true
	}
	switch compression {
	case "zstd":
		return level >= 1 && level <= 22
	case "lz4", "gzip":
		return level >= 1 && level <= 9
	default:
		return false
	}
}

func (c *GenerateConfig) Validate() error {
	if c.OutputDir == "" {
		return ErrOutputDirRequired
	}
	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("%w: '%s'", ErrLogFormatInvalid, c.LogFormat)
	}
	if !formatters.IsSupported(c.Format) {
		return fmt.Errorf("%w: '%s'", ErrOutputFormatInvalid, c.Format)
	}
	if _, err := compressors.GetCompressor(c.Compression); err != nil {
		return fmt.Errorf("%w: '%s'", ErrCompressionInvalid, c.Compression)
	}
	if !isValidCompressionLevel(c.Compression, c.CompressionLevel) {
		return fmt.Errorf("%w for compression %s: got %d", ErrCompressionLevelInvalid, c.Compression, c.CompressionLevel)
	}
	if c.PathTemplate != "" && !regexp.MustCompile(`\{table\}`).MatchString(c.PathTemplate) {
		return fmt.Errorf("%w: '%s'", ErrPathTemplateInvalid, c.PathTemplate)
	}
	if _, err := c.GeneratorConfig(); err != nil {
		return err
	}
	return nil
}

// GeneratorConfig overlays the flags onto the generator defaults.
func (c DataConfig) GeneratorConfig() (generator.Config, error) {
	cfg := generator.DefaultConfig()
	if c.Patients != 0 {
		cfg.Patients = c.Patients
	}
	if c.StartDate != "" {
		t, err := time.Parse(dateLayout, c.StartDate)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrStartDateFormatInvalid, err)
		}
		cfg.StartDate = t
	}
	if c.EndDate != "" {
		t, err := time.Parse(dateLayout, c.EndDate)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrEndDateFormatInvalid, err)
		}
		cfg.EndDate = t
	}
	if c.MinVisits != 0 {
		cfg.MinVisitsPerDay = c.MinVisits
	}
	if c.MaxVisits != 0 {
		cfg.MaxVisitsPerDay = c.MaxVisits
	}
	cfg.Seed = c.Seed
	return cfg, cfg.Validate()
}

func (c *GenerateConfig) ExportOptions() generator.ExportOptions {
	return generator.ExportOptions{
		Format:       c.Format,
		Compression:  c.Compression,
		Level:        c.CompressionLevel,
		PathTemplate: c.PathTemplate,
	}
}

var sourcePrefixPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func (c *LoadConfig) Validate() error {
	if !isValidLogFormat(c.LogFormat) {
		return fmt.Errorf("%w: '%s'", ErrLogFormatInvalid, c.LogFormat)
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if !sourcePrefixPattern.MatchString(c.SourcePrefix) {
		return fmt.Errorf("%w: '%s'", ErrSourcePrefixInvalid, c.SourcePrefix)
	}
	if _, err := c.Scope(); err != nil {
		return err
	}
	if _, err := c.GeneratorConfig(); err != nil {
		return err
	}
	return nil
}

// Scope parses DateScope. The zero time means no scope.
func (c *LoadConfig) Scope() (time.Time, error) {
	if c.DateScope == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, c.DateScope)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrDateScopeFormatInvalid, err)
	}
	return t, nil
}
