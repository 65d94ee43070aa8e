package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmgilman/atlaspack/internal/options"
)

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "List builder options and their defaults",
	Long: `List the options atlaspack knows about, their built-in defaults, and any
override set in the options section of the configuration file.

Options not listed here are still passed to the builder unchanged.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configured := options.Options{}
		if cfg := ConfigFromContext(cmd.Context()); cfg != nil {
			o, err := cfg.OptionOverrides()
			if err != nil {
				return err
			}
			configured = o
		}

		defaults := options.Defaults()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OPTION\tDEFAULT\tCONFIGURED")

		for _, key := range options.KnownKeys() {
			def, _ := defaults.Get(key)
			defText := options.FormatValue(def)
			if key == options.KeyInputFiles {
				defText = "(positional)"
			}

			confText := "-"
			if v, ok := configured.Get(key); ok {
				confText = options.FormatValue(v)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, defText, confText)
		}

		for _, key := range configured.Keys() {
			if options.IsKnown(key) {
				continue
			}
			v, _ := configured.Get(key)
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, "(unrecognized)", options.FormatValue(v))
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(optionsCmd)
}
