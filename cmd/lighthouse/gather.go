package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/willoughbyrm/lighthouse/internal/config"
	"github.com/willoughbyrm/lighthouse/internal/database"
	"github.com/willoughbyrm/lighthouse/internal/driver"
	"github.com/willoughbyrm/lighthouse/internal/gather"
	seclog "github.com/willoughbyrm/lighthouse/internal/log"
	"github.com/willoughbyrm/lighthouse/internal/model"
	"github.com/willoughbyrm/lighthouse/internal/report"
	"github.com/willoughbyrm/lighthouse/internal/tracing"
)

// NewGatherCmd creates the gather command.
func NewGatherCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gather <url>",
		Short: "Run the configured navigations against a URL",
		Long: `Gather loads the URL in Chrome once per configured navigation and runs
every gatherer of that navigation through its lifecycle phases.

A gatherer that fails records its error as its artifact and the run goes on.
A navigation that fails to load ends the run; the artifacts of earlier
navigations are still reported and stored.

Examples:
  # Gather with the default configuration
  lighthouse gather https://example.com

  # Use a custom configuration file
  lighthouse gather -c my-gather.yaml https://example.com

  # Apply devtools throttling with a 4x CPU slowdown
  lighthouse gather --throttling devtools --cpu-slowdown 4 https://example.com

  # Attach to a running Chrome instead of launching one
  lighthouse gather --remote-url ws://127.0.0.1:9222/devtools/browser/<id> https://example.com

  # Write a Markdown report to a file
  lighthouse gather -m -o reports/example.md https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runGatherCmd,
	}

	// Browser flags
	cmd.Flags().String("chrome-path", "",
		"Chrome executable to launch (default: found on PATH)")
	cmd.Flags().String("remote-url", "",
		"DevTools websocket URL of a running browser to attach to")
	cmd.Flags().Bool("headless", true,
		"Run Chrome headless")
	cmd.Flags().String("user-agent", "",
		"Override the browser user agent")

	// Timing flags
	cmd.Flags().Duration("protocol-timeout", config.DefaultProtocolTimeout,
		"Timeout for each protocol command")
	cmd.Flags().Duration("max-wait", config.DefaultMaxWaitForLoad,
		"Maximum wait for each page load")
	cmd.Flags().Duration("collector-timeout", config.DefaultCollectorTimeout,
		"Timeout for each gatherer phase call (0 disables it)")

	// Environment flags
	cmd.Flags().String("throttling", config.DefaultThrottlingMethod,
		"Throttling method: simulate, devtools or provided")
	cmd.Flags().Float64("cpu-slowdown", 0,
		"CPU slowdown multiplier for devtools throttling (0 keeps the configured value)")
	cmd.Flags().Bool("disable-storage-reset", false,
		"Keep storage and cache between navigations")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Gather configuration file (default: .lighthouse.yaml in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Storage and tracing flags
	cmd.Flags().Bool("no-save", false,
		"Do not store the run in the local database")
	cmd.Flags().Bool("trace", false,
		"Write OpenTelemetry spans of the run to stderr")

	return cmd
}

// runGatherCmd executes the gather command.
func runGatherCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runGather(ctx, cmd.OutOrStdout(), cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from the config file and cobra command flags.
// Flags override file settings only when they were set explicitly.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	file, err := loadGatherFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyFile(file)

	if flags.Changed("protocol-timeout") {
		if cfg.ProtocolTimeout, err = flags.GetDuration("protocol-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-wait") {
		if cfg.MaxWaitForLoad, err = flags.GetDuration("max-wait"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("collector-timeout") {
		if cfg.CollectorTimeout, err = flags.GetDuration("collector-timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("throttling") {
		if cfg.ThrottlingMethod, err = flags.GetString("throttling"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("disable-storage-reset") {
		if cfg.DisableStorageReset, err = flags.GetBool("disable-storage-reset"); err != nil {
			return nil, err
		}
	}

	if cfg.CPUSlowdownMultiplier, err = flags.GetFloat64("cpu-slowdown"); err != nil {
		return nil, err
	}
	if cfg.ChromePath, err = flags.GetString("chrome-path"); err != nil {
		return nil, err
	}
	if cfg.RemoteURL, err = flags.GetString("remote-url"); err != nil {
		return nil, err
	}
	if cfg.Headless, err = flags.GetBool("headless"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	noSave, err := flags.GetBool("no-save")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noSave

	if cfg.Trace, err = flags.GetBool("trace"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadGatherFile loads the gather config file. An explicitly given path
// must exist; without one the discovered file is used, falling back to the
// built-in default.
func loadGatherFile(explicitPath string) (*config.File, error) {
	path := config.FindConfigFile(explicitPath)
	if path == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return config.DefaultFile()
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// setupLogger creates a redacting structured logger based on verbosity.
func setupLogger(verbose bool) *slog.Logger {
	return seclog.NewSecureLogger(os.Stderr, verbose)
}

// runGather executes one gather run and reports it to out.
// Configuration problems are reported before a browser is started.
func runGather(ctx context.Context, out io.Writer, cfg *config.Config, logger *slog.Logger) error {
	settings, err := cfg.Settings()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	navigations, err := cfg.File.NavigationDefns()
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := gather.ValidateNavigations(navigations); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	opts := []gather.Option{
		gather.WithLogger(logger),
		gather.WithSettings(settings),
		gather.WithCollectorTimeout(cfg.CollectorTimeout),
	}

	if cfg.Trace {
		provider, err := tracing.NewProvider(config.AppName, getVersion(), os.Stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := provider.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("failed to flush traces", "error", err)
			}
		}()
		opts = append(opts, gather.WithTracer(provider.Tracer()))
	}

	var db *database.RunDB
	if cfg.SaveToDB {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Debug("database opened", "path", db.Path())
	}

	chrome := newChrome(cfg, logger)
	defer func() {
		if err := chrome.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	run, gatherErr := gather.New(chrome, opts...).Gather(ctx, navigations, cfg.URL)
	if run == nil {
		return gatherErr
	}

	if err := saveRun(ctx, db, run, logger); err != nil {
		return err
	}
	if err := outputRun(out, cfg, run); err != nil {
		return err
	}

	if gatherErr != nil {
		var navErr *gather.NavigationError
		if errors.As(gatherErr, &navErr) {
			return fmt.Errorf("run %s ended early: %w", run.ID, gatherErr)
		}
		return gatherErr
	}
	return nil
}

// newChrome creates the browser driver described by cfg.
func newChrome(cfg *config.Config, logger *slog.Logger) *driver.Chrome {
	opts := []driver.ChromeOption{
		driver.WithHeadless(cfg.Headless),
		driver.WithProtocolTimeout(cfg.ProtocolTimeout),
		driver.WithDriverLogger(logger),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, driver.WithExecPath(cfg.ChromePath))
	}
	if cfg.RemoteURL != "" {
		opts = append(opts, driver.WithRemoteURL(cfg.RemoteURL))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, driver.WithUserAgent(cfg.UserAgent))
	}
	return driver.NewChrome(opts...)
}

// newWriter returns the report writer selected by the format flags.
func newWriter(output io.Writer, jsonOutput, markdownOutput, verbose bool) report.Writer {
	switch {
	case jsonOutput:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case markdownOutput:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}

// outputRun writes the run report to the configured destination.
func outputRun(out io.Writer, cfg *config.Config, run *model.Run) error {
	output := out
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Artifacts may hold page content, so the report is owner-only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newWriter(output, cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose).Write(run)
	return err
}

// saveRun stores the run in the database.
// If db is nil, this function is a no-op.
func saveRun(ctx context.Context, db *database.RunDB, run *model.Run, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	if err := db.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	logger.Info("run saved to database", "run", run.ID, "url", run.RequestedURL)
	return nil
}
