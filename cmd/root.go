package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	slogseq "github.com/sokkalf/slog-seq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information - set via ldflags during build
	// Example: go build -ldflags "-X github.com/DanyaHDanny/tafordqe/cmd.Version=1.2.3"
	Version = "dev"

	cfgFile   string
	debug     bool
	logFormat string
	seqURL    string

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true).
			Underline(true)

	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// textOnlyHandler outputs human-readable lines for interactive terminal
// usage: timestamp, level, message, then any attributes as key=value.
type textOnlyHandler struct {
	opts   slog.HandlerOptions
	writer io.Writer
	attrs  []slog.Attr
}

func newTextOnlyHandler(w io.Writer, opts *slog.HandlerOptions) *textOnlyHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &textOnlyHandler{
		opts:   *opts,
		writer: w,
	}
}

func (h *textOnlyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *textOnlyHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s", r.Time.Format("2006-01-02 15:04:05"), r.Level.String(), r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})
	sb.WriteByte('\n')
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *textOnlyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *textOnlyHandler) WithGroup(_ string) slog.Handler {
	// groups are flattened in text-only mode
	return h
}

// multiHandler forwards log records to every handler
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// newConsoleHandler picks the console handler for the log format.
func newConsoleHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	switch format {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "logfmt":
		return slog.NewTextHandler(w, opts)
	default:
		return newTextOnlyHandler(w, opts)
	}
}

// initLogger sets the package logger and returns a function flushing any
// remote sink. Logs go to stderr so reports on stdout stay parseable.
func initLogger(isDebug bool, format, seq string) func() {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if isDebug {
		opts.Level = slog.LevelDebug
	}

	handler := newConsoleHandler(os.Stderr, format, opts)
	if seq == "" {
		logger = slog.New(handler)
		return func() {}
	}

	_, seqHandler := slogseq.NewLogger(
		seq,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(opts),
	)
	if seqHandler == nil {
		logger = slog.New(handler)
		logger.Warn("seq sink unavailable, logging to console only", "url", seq)
		return func() {}
	}
	logger = slog.New(&multiHandler{handlers: []slog.Handler{handler, seqHandler}})
	return func() { seqHandler.Close() }
}

var rootCmd = &cobra.Command{
	Use:     "dqe",
	Version: Version,
	Short:   "Data quality checks across databases and exported files",
	Long: titleStyle.Render("Data Quality Engine") + `

Compares and validates tabular datasets. A suite lists scenarios, each
naming a source and a target (a SQL query or table, a local file or
directory, or an s3:// prefix) and the checks to run: count,
completeness, empty, not_empty, not_null and duplicates.
Also generates a synthetic clinic dataset with partitioned exports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// ExecuteContext runs the root command with a signal-aware context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(loadCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dqe.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, logfmt, json)")
	rootCmd.PersistentFlags().StringVar(&seqURL, "seq-url", "", "also ship logs to a Seq server at this URL")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("seq_url", rootCmd.PersistentFlags().Lookup("seq-url"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dqe")
	}

	viper.SetEnvPrefix("DQE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && debug {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}
