// Package cmd implements the atlaspack CLI commands using Cobra.
// It provides commands for packing texture atlases with the native atlas
// builder, previewing its arguments, installing it, and reviewing run logs.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack/internal/config"
	"github.com/jmgilman/atlaspack/internal/runner"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

// appConfig holds the loaded application configuration.
var appConfig *config.Config

// configLoader is kept for commands that read or write single keys.
var configLoader *config.Loader

var rootCmd = &cobra.Command{
	Use:   "atlaspack",
	Short: "Pack sprites into texture atlases",
	Long: `atlaspack drives the native atlas builder to pack sprite images into
texture atlases.

Options are merged from the built-in defaults, the options section of the
configuration file, an optional options file, and -s key=value flags, in that
order. The builder receives them through a response file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, err := cmd.Flags().GetCount("verbose")
		if err != nil {
			return fmt.Errorf("get verbose flag: %w", err)
		}

		format := slogger.FormatText
		if appConfig != nil && appConfig.Log.Format != "" {
			format = appConfig.Log.Format
		}

		logger, err := slogger.New(slogger.Config{
			Verbosity: verbosity,
			Format:    format,
		})
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		ctx = slogger.WithLogger(ctx, logger)
		ctx = WithConfig(ctx, appConfig)
		ctx = WithLoader(ctx, configLoader)
		ctx = WithVerbosity(ctx, verbosity)
		cmd.SetContext(ctx)

		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// Main runs the CLI and returns the process exit code. A builder that exited
// nonzero passes its own code through.
func Main() int {
	if err := Execute(); err != nil {
		return ExitCode(err)
	}
	return 0
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *runner.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode > 0 {
		return exitErr.ExitCode
	}
	return 1
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().CountP("verbose", "v", "increase log verbosity (-v info, -vv debug)")
}

func initConfig() {
	loader, err := config.NewLoader()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
		return
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config validation failed: %v\n", err)
	}

	appConfig = cfg
	configLoader = loader
}
