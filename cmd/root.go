package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/KaramelBytes/rowloom-cli/internal/config"
	"github.com/KaramelBytes/rowloom-cli/internal/logging"
	"github.com/KaramelBytes/rowloom-cli/internal/mapping"
)

var (
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "rowloom",
	Short: "RowLoom CLI: turn CSV exports into evaluation dataset items and pivot summaries",
	Long: `RowLoom parses CSV files, maps their columns onto input, expected output and
metadata roles with light type inference, and either writes the resulting items
as JSON or uploads them to a dataset API. It can also pivot tabular data into a
row-by-column summary of summed values.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization cycle
	// (rootCmd -> loadConfig -> rootCmd).
	rootCmd.PersistentPreRunE = persistentPreRunE
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.rowloom/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func persistentPreRunE(cmd *cobra.Command, args []string) error {
	loadConfig()
	level := ""
	if cfg != nil {
		level = cfg.LogLevel
	}
	l, err := logging.New(level, debug)
	if err != nil {
		// A bad log_level must not lock out `config set log_level`
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v; using log level %s\n", err, logging.DefaultLevel)
		if l, err = logging.New(logging.DefaultLevel, debug); err != nil {
			l = zap.NewNop()
		}
	}
	logger = l
	return nil
}

func loadConfig() {
	cfg = nil
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}
}

// effectiveConfig returns the loaded config, or defaults when loading failed.
func effectiveConfig() *cfgpkg.Global {
	if cfg != nil {
		return cfg
	}
	return &cfgpkg.Global{SampleRows: mapping.DefaultSampleRows, LogLevel: logging.DefaultLevel}
}
