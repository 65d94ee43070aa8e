package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack/internal/config"
	"github.com/jmgilman/atlaspack/internal/options"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

func requireConfig(ctx context.Context) (*config.Config, error) {
	cfg := ConfigFromContext(ctx)
	if cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// addOptionFlags registers the flags shared by commands that build an
// argument list.
func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("set", "s", nil, "set a builder option (key=value, repeatable)")
	cmd.Flags().StringP("options-file", "f", "", "read builder options from a YAML file")
}

// resolveOverrides layers option overrides from the config file, the
// options file, -s flags, and positional input files, later sources winning.
func resolveOverrides(cmd *cobra.Command, inputFiles []string) (options.Options, error) {
	ctx := cmd.Context()

	var overrides options.Options
	if cfg := ConfigFromContext(ctx); cfg != nil {
		fromConfig, err := cfg.OptionOverrides()
		if err != nil {
			return options.Options{}, err
		}
		overrides = fromConfig
	}

	optionsFile, err := cmd.Flags().GetString("options-file")
	if err != nil {
		return options.Options{}, fmt.Errorf("get options-file flag: %w", err)
	}
	if optionsFile != "" {
		//nolint:gosec // G304: the options file is chosen by the user
		data, err := os.ReadFile(optionsFile)
		if err != nil {
			return options.Options{}, fmt.Errorf("read options file: %w", err)
		}
		fromFile, err := options.FromYAML(data)
		if err != nil {
			return options.Options{}, fmt.Errorf("options file %s: %w", optionsFile, err)
		}
		overrides = options.Merge(overrides, fromFile)
	}

	pairs, err := cmd.Flags().GetStringArray("set")
	if err != nil {
		return options.Options{}, fmt.Errorf("get set flag: %w", err)
	}
	fromFlags, err := options.FromPairs(pairs)
	if err != nil {
		return options.Options{}, err
	}
	overrides = options.Merge(overrides, fromFlags)

	if len(inputFiles) > 0 {
		overrides = overrides.With(options.KeyInputFiles, inputFiles)
	}

	for _, key := range overrides.Keys() {
		if !options.IsKnown(key) {
			slogger.L(ctx).Warn("passing unrecognized option to atlas builder", "option", key)
		}
	}

	return overrides, nil
}

// formatSize renders a byte count for listings.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
