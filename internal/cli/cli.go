package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pfrederiksen/nppes-extract/internal/config"
	"github.com/pfrederiksen/nppes-extract/internal/logger"
	"github.com/pfrederiksen/nppes-extract/internal/pipeline"
	"github.com/pfrederiksen/nppes-extract/internal/storage"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagIndexURL   string
	flagState      string
	flagOutput     string
	flagBatchSize  int
	flagTimeout    time.Duration
	flagEncoding   string
	flagNoManifest bool
	flagEnvFile    string
	flagFormat     string
	flagVerbose    bool
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "nppes-extract",
		Short: "Extract active providers for one state from the latest NPPES Monthly V2 file",
		Long: `Downloads the latest NPPES Monthly V2 data dissemination file from CMS,
filters the provider CSV to active records in one state and writes them to a CSV.`,
		Args:          cobra.NoArgs,
		RunE:          runExtract,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&flagIndexURL, "index-url", defaults.IndexURL, "CMS page listing the NPPES files")
	flags.StringVar(&flagState, "state", defaults.State, "Two-letter practice location state to keep")
	flags.StringVar(&flagOutput, "output", defaults.Output, "Output CSV path")
	flags.IntVar(&flagBatchSize, "batch-size", defaults.BatchSize, "Rows per processing batch")
	flags.DurationVar(&flagTimeout, "timeout", defaults.Timeout, "HTTP timeout for each request")
	flags.StringVar(&flagEncoding, "encoding", defaults.Encoding, "Input CSV encoding: utf-8, latin1 or windows-1252")
	flags.BoolVar(&flagNoManifest, "no-manifest", false, "Do not write the run manifest next to the output")
	flags.StringVar(&flagEnvFile, "env-file", ".env", "Optional dotenv file with NPPES_* settings")
	flags.StringVar(&flagFormat, "format", "text", "Output format: text or json")
	flags.BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newLatestCmd(), newStatusCmd())

	return cmd
}

func newLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Print the URL of the newest Monthly V2 archive",
		Args:  cobra.NoArgs,
		RunE:  runLatest,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the manifest of the last run for --output",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

// loadConfig merges defaults, the env file, the environment and changed flags
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(flagEnvFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("index-url") {
		cfg.IndexURL = flagIndexURL
	}
	if flags.Changed("state") {
		cfg.State = flagState
	}
	if flags.Changed("output") {
		cfg.Output = flagOutput
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = flagBatchSize
	}
	if flags.Changed("timeout") {
		cfg.Timeout = flagTimeout
	}
	if flags.Changed("encoding") {
		cfg.Encoding = flagEncoding
	}
	if flagNoManifest {
		cfg.Manifest = false
	}
	cfg.Verbose = flagVerbose

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// outputFormat validates --format
func outputFormat() (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(flagFormat))
	if format != FormatText && format != FormatJSON {
		return "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", flagFormat)
	}
	return format, nil
}

// setupLogging installs the default logger on stderr
func setupLogging(cfg config.Config) *logger.Logger {
	level := logger.LevelInfo
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	log := logger.New(level, os.Stderr)
	logger.SetDefault(log)
	return log
}

// runExtract is the main command logic
func runExtract(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := setupLogging(cfg)

	log.Debug("configuration", logger.Fields{
		"index_url":  cfg.IndexURL,
		"state":      cfg.State,
		"output":     cfg.Output,
		"batch_size": cfg.BatchSize,
		"timeout":    cfg.Timeout.String(),
		"encoding":   cfg.Encoding,
	})

	p := pipeline.New(cfg, log)
	result, err := p.Run(cmd.Context())
	if err != nil {
		return err
	}

	return WriteOutput(cmd.OutOrStdout(), NewOutputResult(result, cfg.State), format)
}

// runLatest resolves the newest archive without downloading it
func runLatest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := setupLogging(cfg)

	sourceURL, err := pipeline.New(cfg, log).Resolve(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), sourceURL)
	return nil
}

// runStatus prints the manifest for the configured output
func runStatus(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	store := storage.New(cfg.Output)
	manifest, err := store.Load()
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}
	if manifest == nil {
		return fmt.Errorf("no manifest found at %s", store.Path())
	}

	return WriteManifest(cmd.OutOrStdout(), manifest, format)
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}
