package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/sheikhmuhammadzain/dataanalytics/internal/config"
	"github.com/sheikhmuhammadzain/dataanalytics/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	envFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg    *cfgpkg.Global
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "csvdash",
	Short: "csvdash: explore CSV data, transform it with undo/redo, and ask an LLM about it",
	Long: `csvdash loads CSV/TSV/XLSX files, infers column types and summary statistics,
applies sort/delete/combine/filter transformations with full history, and relays
questions about the data to a chat model. Run "csvdash serve" for the dashboard API.`,
	SilenceUsage: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.csvdash/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before config (missing file is ignored)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	if err := cfgpkg.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v\n", err)
	}
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

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	if _, err := logging.ParseLevel(level); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ Warning: %v, using info\n", err)
	}
	logger = logging.New(level, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
}

// requireConfig returns the loaded configuration, loading it on demand when
// the initializer could not.
func requireConfig() (*cfgpkg.Global, error) {
	if cfg != nil {
		return cfg, nil
	}
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	cfg = c
	return cfg, nil
}
