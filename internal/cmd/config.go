package cmd

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmgilman/atlaspack/internal/config"
	"github.com/jmgilman/atlaspack/internal/options"
	"github.com/jmgilman/atlaspack/internal/slogger"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "View and modify configuration",
	Long: `View and modify atlaspack configuration.

With no arguments, displays all configuration.
With one argument, displays the value for the specified key.
With two arguments, sets the value for the specified key.

Builder option overrides live under options.<name> and apply to every pack
and args invocation.`,
	Example: `  # Show all config
  atlaspack config

  # Show where the builder is looked up
  atlaspack config binary.root

  # Always pad sprites by four pixels
  atlaspack config options.padding 4

  # Open config file in editor
  atlaspack config --edit`,
	Args: cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		loader := LoaderFromContext(cmd.Context())
		if loader == nil {
			var err error
			if loader, err = config.NewLoader(); err != nil {
				return fmt.Errorf("init config loader: %w", err)
			}
		}

		if showPath, _ := cmd.Flags().GetBool("path"); showPath {
			fmt.Fprintln(cmd.OutOrStdout(), loader.Path())
			return nil
		}
		if edit, _ := cmd.Flags().GetBool("edit"); edit {
			return runEdit(loader)
		}

		// Load to ensure the file exists.
		if _, err := loader.Load(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			return runShowAll(out, loader)
		case 1:
			return runShowKey(out, loader, args[0])
		default:
			return runSetKey(cmd, loader, args[0], args[1])
		}
	},
}

func runEdit(loader *config.Loader) error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return config.ErrNoEditor
	}

	if _, err := loader.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	//nolint:gosec // G204: the editor is chosen by the user
	editorCmd := exec.Command(editor, loader.Path())
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	return editorCmd.Run()
}

func runShowAll(out io.Writer, loader *config.Loader) error {
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Fprint(out, string(data))
	return nil
}

func runShowKey(out io.Writer, loader *config.Loader, key string) error {
	value, err := loader.Get(key)
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case nil:
		fmt.Fprintln(out)
	case string:
		fmt.Fprintln(out, v)
	case map[string]any, []any:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal value: %w", err)
		}
		fmt.Fprint(out, string(data))
	default:
		fmt.Fprintln(out, options.FormatValue(v))
	}

	return nil
}

func runSetKey(cmd *cobra.Command, loader *config.Loader, key, value string) error {
	if err := loader.Set(key, value); err != nil {
		return err
	}

	if name, ok := strings.CutPrefix(key, "options."); ok && !options.IsKnown(name) {
		slogger.L(cmd.Context()).Warn("atlas builder option is not recognized; it will be passed through", "option", name)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s\n", key, value)
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.Flags().Bool("edit", false, "open config file in $EDITOR")
	configCmd.Flags().Bool("path", false, "print the config file path")
}
