// Package cli implements the fragscreen command-line interface.  The root
// command owns global flags, configuration resolution, and logger setup;
// subcommands assemble the pipeline from the resolved configuration and run
// it.  All diagnostics go to stderr so stdout stays reserved for results.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crystalytics/fragscreen/internal/config"
	"github.com/crystalytics/fragscreen/internal/infrastructure/monitoring/logging"
	"github.com/crystalytics/fragscreen/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// cliContextKey is the context key for CLIContext.
type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Verbose    bool
}

// CLIContext carries the initialized configuration and logger through the
// command tree.  It is stored on the cobra command context by the root
// command's PersistentPreRunE and retrieved by subcommands via
// GetCLIContext.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

// NewRootCommand creates the root cobra command with all global flags and
// subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "fragscreen",
		Short:   "Geometric fragment similarity screening for crystal structures",
		Long:    "fragscreen extracts coordination fragments from target crystal structures and\nscreens them against a fragment population using shape fingerprints, reporting\nthe closest population matches per target fragment as annotated SDF files.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// version and help need no configuration.
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: ./fragscreen.yaml)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "shorthand for --log-level debug")

	// Flag parse failures are caller mistakes; give them the usage exit
	// status instead of the generic failure one.
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid command line")
	})

	cmd.AddCommand(
		newScreenCmd(),
		newIndexCmd(),
		newVersionCmd(),
	)

	return cmd
}

// persistentPreRun initializes config and logger, then stores the CLIContext
// on the command context for subcommands.
func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := initConfig(opts)
	if err != nil {
		return err
	}

	logger, err := initLogger(cfg, opts)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "logger initialization failed")
	}
	logging.SetDefault(logger)

	cliCtx := &CLIContext{
		Config: cfg,
		Logger: logger,
	}

	ctx := context.WithValue(cmd.Context(), cliContextKey{}, cliCtx)
	cmd.SetContext(ctx)

	return nil
}

// initConfig resolves configuration with priority: --config flag, then the
// default search paths, then environment variables over built-in defaults.
func initConfig(opts *RootOptions) (*config.Config, error) {
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "config file not found").
				WithDetail(opts.ConfigPath)
		}
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "config load failed").
				WithDetail(opts.ConfigPath)
		}
		return cfg, nil
	}

	searchPaths := []string{
		"./fragscreen.yaml",
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(homeDir, ".fragscreen", "config.yaml"))
	}
	searchPaths = append(searchPaths, "/etc/fragscreen/config.yaml")

	for _, p := range searchPaths {
		if _, statErr := os.Stat(p); statErr == nil {
			cfg, err := config.Load(p)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "config load failed").
					WithDetail(p)
			}
			return cfg, nil
		}
	}

	// No config file found; environment variables over defaults.
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "config load from environment failed")
	}
	return cfg, nil
}

// initLogger creates a logger configured for CLI usage.  Console format on
// stderr, so report output on stdout stays machine-readable.
func initLogger(cfg *config.Config, opts *RootOptions) (logging.Logger, error) {
	level := cfg.Logging.Level
	switch opts.LogLevel {
	case "debug", "info", "warn", "error":
		level = opts.LogLevel
	}
	if opts.Verbose {
		level = "debug"
	}

	return logging.NewLogger(logging.Config{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts the CLIContext from a cobra command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.Internal("command context is nil")
	}

	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.Internal("CLI context not initialized; missing persistent pre-run")
	}

	return cliCtx, nil
}

// Execute runs the root command and maps the outcome onto a process exit
// status.  Diagnostics for failed runs are printed to stderr.
func Execute(ctx context.Context) int {
	rootCmd := NewRootCommand()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(rootCmd, err)
		return errors.ExitStatusForCode(errors.GetCode(err))
	}

	return errors.ExitOK
}

// PrintError writes a formatted error message to the command's stderr.
func PrintError(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())
}
